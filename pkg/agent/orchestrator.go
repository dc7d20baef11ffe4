package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"atlas-g/protocol/pkg/evidence"
	"atlas-g/protocol/pkg/generation"
	"atlas-g/protocol/pkg/governance"
	"atlas-g/protocol/pkg/governance/claims"
	"atlas-g/protocol/pkg/governance/classifier"
	"atlas-g/protocol/pkg/governance/heuristics"
	"atlas-g/protocol/pkg/knowledge"
	"atlas-g/protocol/pkg/leads"
	"atlas-g/protocol/pkg/limits/ratelimit"
	"atlas-g/protocol/pkg/session"
	"atlas-g/protocol/pkg/telemetry/metrics"
	"atlas-g/protocol/pkg/telemetry/tracing"
)

// Defaults for Config fields left at zero.
const (
	DefaultAuditTail         = 3
	DefaultThoughtChainLimit = 50
	DefaultSubject           = "the candidate"
)

// eventBuffer lets the producer run a few events ahead of a slow consumer.
const eventBuffer = 16

// Config holds per-turn limits.
type Config struct {
	// Subject names the person the agent represents.
	Subject string

	// AuditTail bounds the audit entries emitted after generation.
	AuditTail int

	// ThoughtChainLimit caps the session thought chain.
	ThoughtChainLimit int

	// TurnTimeout bounds the work of one turn. Zero means no limit; a
	// caller may also bound a turn through its context.
	TurnTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.AuditTail <= 0 {
		c.AuditTail = DefaultAuditTail
	}
	if c.ThoughtChainLimit <= 0 {
		c.ThoughtChainLimit = DefaultThoughtChainLimit
	}
}

// Recorder receives one evidence record per turn.
type Recorder interface {
	Record(ctx context.Context, record *evidence.TurnRecord) error
}

// Orchestrator runs the governance-gated Thought-Action loop. It holds only
// immutable collaborators and is safe for concurrent use across sessions.
type Orchestrator struct {
	generator  generation.Generator
	scanner    *heuristics.Scanner
	classifier *classifier.Classifier
	validator  *claims.Validator
	prompts    *PromptBuilder
	domains    []domainMatcher
	store      session.Store

	capturer leads.Capturer
	notifier leads.Notifier
	limiter  *ratelimit.Limiter
	recorder Recorder
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
	logger   *slog.Logger

	config   Config
	persona  string
	layers   []ContextLayer
	rules    []DomainRule
	sampling generation.Sampling
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets per-turn limits. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) {
		o.config = cfg
	}
}

// WithPersona replaces the built-in core system prompt.
func WithPersona(persona string) Option {
	return func(o *Orchestrator) {
		o.persona = persona
	}
}

// WithContextLayers replaces the built-in context layers. A nil slice keeps
// the defaults; an empty non-nil slice disables context routing.
func WithContextLayers(layers []ContextLayer) Option {
	return func(o *Orchestrator) {
		if layers != nil {
			o.layers = layers
		}
	}
}

// WithDomainRules replaces the built-in domain rules. A nil slice keeps the
// defaults.
func WithDomainRules(rules []DomainRule) Option {
	return func(o *Orchestrator) {
		if rules != nil {
			o.rules = rules
		}
	}
}

// WithSampling sets the generation sampling.
func WithSampling(s generation.Sampling) Option {
	return func(o *Orchestrator) {
		o.sampling = s
	}
}

// WithLeads enables structured submission capture. notifier may be nil.
func WithLeads(capturer leads.Capturer, notifier leads.Notifier) Option {
	return func(o *Orchestrator) {
		o.capturer = capturer
		o.notifier = notifier
	}
}

// WithRateLimiter refuses turns of sessions that exceed their turn budget.
// Refused turns cost no strike.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(o *Orchestrator) {
		o.limiter = l
	}
}

// WithRecorder records one evidence record per turn.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithMetrics records turn, policy and generation metrics.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithTracer wraps turns and generation calls in spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = t
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator. The heuristic library may be hot-reloaded by
// its owner; the knowledge source is read-only for the process lifetime.
func New(gen generation.Generator, library *heuristics.Library, source *knowledge.Source, store session.Store, opts ...Option) (*Orchestrator, error) {
	switch {
	case gen == nil:
		return nil, errors.New("agent: generator is required")
	case library == nil:
		return nil, errors.New("agent: heuristic library is required")
	case source == nil:
		return nil, errors.New("agent: knowledge source is required")
	case store == nil:
		return nil, errors.New("agent: session store is required")
	}

	o := &Orchestrator{
		generator: gen,
		store:     store,
		layers:    DefaultContextLayers(),
		rules:     DefaultDomainRules(),
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	o.config.applyDefaults()
	base := o.logger
	o.logger = base.With("component", "agent")
	if o.persona == "" {
		o.persona = DefaultPersona(o.config.Subject)
	}

	o.scanner = heuristics.NewScanner(library, base, heuristics.WithHitObserver(o.metrics.RecordHeuristicHit))
	o.classifier = classifier.New(gen,
		classifier.WithSubject(o.config.Subject),
		classifier.WithFallbackObserver(o.metrics.RecordClassifierFallback),
		classifier.WithLogger(base),
	)
	o.validator = claims.NewValidator(source.Graph, library)
	o.prompts = NewPromptBuilder(o.persona, o.layers, source.Document, o.sampling)
	o.domains = compileDomainRules(o.rules)

	return o, nil
}

// Resume returns the session for id. An empty id creates a new session; an
// unknown id creates a session with that id. A store failure is logged and
// answered with a fresh session under a new id.
func (o *Orchestrator) Resume(ctx context.Context, id string) *Session {
	if id == "" {
		return NewSession("")
	}

	snap, err := o.store.Load(ctx, id)
	switch {
	case err == nil:
		return FromSnapshot(snap)
	case errors.Is(err, session.ErrNotFound):
		return NewSession(id)
	default:
		o.metrics.RecordSessionStoreError("load")
		o.logger.ErrorContext(ctx, "failed to load session, starting fresh",
			"session_id", id,
			"error", err,
		)
		return NewSession("")
	}
}

// Think runs one turn for query and returns its events in order. The
// channel is closed after the session has been persisted. The caller must
// drain the channel or cancel ctx, and must not touch sess until the channel
// is closed.
func (o *Orchestrator) Think(ctx context.Context, sess *Session, query string) <-chan Event {
	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		o.run(ctx, sess, query, out)
	}()
	return out
}

// TurnResult is a fully drained turn.
type TurnResult struct {
	SessionID string                     `json:"session_id"`
	AuditLog  []governance.AuditLogEntry `json:"audit_log"`
	Response  *Response                  `json:"response"`
	Error     *ErrorInfo                 `json:"error"`
}

// Query resumes sessionID, runs one turn and collects its events.
func (o *Orchestrator) Query(ctx context.Context, sessionID, query string) *TurnResult {
	sess := o.Resume(ctx, sessionID)
	result := &TurnResult{SessionID: sess.ID, AuditLog: []governance.AuditLogEntry{}}

	for ev := range o.Think(ctx, sess, query) {
		switch ev.Type {
		case EventAudit:
			result.AuditLog = append(result.AuditLog, *ev.Audit)
		case EventResponse:
			result.Response = ev.Response
		case EventError:
			result.Error = ev.Error
		case EventStream:
		}
	}
	return result
}

func (o *Orchestrator) run(ctx context.Context, sess *Session, query string, out chan<- Event) {
	t := newTurn(o, ctx, sess, query, out)
	defer t.finish()
	t.execute()
}

func (o *Orchestrator) persist(ctx context.Context, sess *Session) {
	if err := o.store.Save(ctx, sess.ID, sess.Snapshot(o.now())); err != nil {
		o.metrics.RecordSessionStoreError("save")
		o.logger.ErrorContext(ctx, "failed to persist session",
			"session_id", sess.ID,
			"error", err,
		)
	}
}

func (o *Orchestrator) recordEvidence(ctx context.Context, rec *evidence.TurnRecord) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.Record(ctx, rec); err != nil {
		o.logger.WarnContext(ctx, "failed to record turn evidence", "error", err)
	}
}

func newTurnID() string {
	return uuid.NewString()
}

func agentError(err error) string {
	return fmt.Sprintf("Agent error: %v", err)
}
