package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config contains metrics configuration.
type Config struct {
	Enabled   bool
	Namespace string
	Subsystem string

	// TurnDurationBuckets are histogram buckets in seconds.
	TurnDurationBuckets []float64
}

// Collector owns the agent's Prometheus metrics and their registry.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	turns             *prometheus.CounterVec
	policyDecisions   *prometheus.CounterVec
	heuristicHits     *prometheus.CounterVec
	classifierFailure prometheus.Counter
	claims            *prometheus.CounterVec
	traps             prometheus.Counter
	storeErrors       *prometheus.CounterVec
	leads             prometheus.Counter
	evidenceWrites    *prometheus.CounterVec

	turnDuration       prometheus.Histogram
	generationDuration *prometheus.HistogramVec
}

// NewCollector creates a collector and registers its metrics with registry.
// A nil registry creates a private one.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = &Config{Enabled: true}
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "atlas"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "agent"
	}
	if len(cfg.TurnDurationBuckets) == 0 {
		cfg.TurnDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	}

	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help}
	}

	c := &Collector{
		config:   cfg,
		registry: registry,

		turns: prometheus.NewCounterVec(opts("turns_total",
			"Completed turns by outcome."), []string{"outcome"}),
		policyDecisions: prometheus.NewCounterVec(opts("policy_decisions_total",
			"Policy decisions by query category and status."), []string{"category", "status"}),
		heuristicHits: prometheus.NewCounterVec(opts("heuristic_hits_total",
			"Pre-classifier heuristic matches by threat group."), []string{"group"}),
		classifierFailure: prometheus.NewCounter(opts("classifier_fallbacks_total",
			"Classifier failures that fell open to the default category.")),
		claims: prometheus.NewCounterVec(opts("claims_total",
			"Validated response sentences by verdict."), []string{"verdict"}),
		traps: prometheus.NewCounter(opts("hallucination_traps_total",
			"Responses blocked by a hallucination trap.")),
		storeErrors: prometheus.NewCounterVec(opts("session_store_errors_total",
			"Session store failures by operation."), []string{"op"}),
		leads: prometheus.NewCounter(opts("leads_captured_total",
			"Contact submissions captured.")),
		evidenceWrites: prometheus.NewCounterVec(opts("evidence_writes_total",
			"Evidence record writes by result."), []string{"result"}),

		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a turn from query to final event.",
			Buckets:   cfg.TurnDurationBuckets,
		}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "generation_duration_seconds",
			Help:      "Model call latency by provider and operation.",
			Buckets:   cfg.TurnDurationBuckets,
		}, []string{"provider", "op"}),
	}

	registry.MustRegister(
		c.turns, c.policyDecisions, c.heuristicHits, c.classifierFailure,
		c.claims, c.traps, c.storeErrors, c.leads, c.evidenceWrites,
		c.turnDuration, c.generationDuration,
	)
	return c
}

func (c *Collector) on() bool {
	return c != nil && c.config.Enabled
}

// RecordTurn counts a finished turn and observes its duration.
func (c *Collector) RecordTurn(outcome string, duration time.Duration) {
	if !c.on() {
		return
	}
	c.turns.WithLabelValues(outcome).Inc()
	c.turnDuration.Observe(duration.Seconds())
}

// RecordPolicyDecision counts a policy decision.
func (c *Collector) RecordPolicyDecision(category, status string) {
	if !c.on() {
		return
	}
	c.policyDecisions.WithLabelValues(category, status).Inc()
}

// RecordHeuristicHit counts a heuristic match for group.
func (c *Collector) RecordHeuristicHit(group string) {
	if !c.on() {
		return
	}
	c.heuristicHits.WithLabelValues(group).Inc()
}

// RecordClassifierFallback counts a fail-open classification.
func (c *Collector) RecordClassifierFallback() {
	if !c.on() {
		return
	}
	c.classifierFailure.Inc()
}

// RecordClaims counts validated sentences.
func (c *Collector) RecordClaims(verified, filtered int) {
	if !c.on() {
		return
	}
	c.claims.WithLabelValues("verified").Add(float64(verified))
	c.claims.WithLabelValues("filtered").Add(float64(filtered))
}

// RecordHallucinationTrap counts a trap-blocked response.
func (c *Collector) RecordHallucinationTrap() {
	if !c.on() {
		return
	}
	c.traps.Inc()
}

// RecordSessionStoreError counts a session store failure for op.
func (c *Collector) RecordSessionStoreError(op string) {
	if !c.on() {
		return
	}
	c.storeErrors.WithLabelValues(op).Inc()
}

// RecordLeadCaptured counts a captured lead.
func (c *Collector) RecordLeadCaptured() {
	if !c.on() {
		return
	}
	c.leads.Inc()
}

// RecordEvidenceWrite counts an evidence write; err nil means success.
func (c *Collector) RecordEvidenceWrite(err error) {
	if !c.on() {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.evidenceWrites.WithLabelValues(result).Inc()
}

// ObserveGeneration records model call latency.
func (c *Collector) ObserveGeneration(provider, op string, duration time.Duration) {
	if !c.on() {
		return
	}
	c.generationDuration.WithLabelValues(provider, op).Observe(duration.Seconds())
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}
