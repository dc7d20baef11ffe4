package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"atlas-g/protocol/pkg/evidence"
	"atlas-g/protocol/pkg/evidence/recorder"
	"atlas-g/protocol/pkg/governance"
	"atlas-g/protocol/pkg/governance/policy"
	"atlas-g/protocol/pkg/leads"
	"atlas-g/protocol/pkg/session"
	"atlas-g/protocol/pkg/telemetry/logging"
	"atlas-g/protocol/pkg/telemetry/tracing"
)

// turn is the state of one Thought-Action cycle. It is owned by the producer
// goroutine started by Think.
type turn struct {
	o    *Orchestrator
	sess *Session
	gctx *governance.Context
	out  chan<- Event

	// parent is the caller's context; events are delivered while it is live.
	// ctx additionally carries the turn timeout and the turn span.
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	span   trace.Span

	record   *evidence.TurnRecord
	started  time.Time
	emitted  int
	outcome  evidence.Outcome
	terminal bool
	err      error
}

func newTurn(o *Orchestrator, parent context.Context, sess *Session, query string, out chan<- Event) *turn {
	turnID := newTurnID()
	parent = logging.WithTurn(logging.WithSession(parent, sess.ID), turnID)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if o.config.TurnTimeout > 0 {
		ctx, cancel = context.WithTimeout(parent, o.config.TurnTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	ctx, span := o.tracer.Start(ctx, "agent.turn", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("turn.id", turnID),
		attribute.Int("session.violations", sess.ViolationCount),
	))

	started := o.now()
	return &turn{
		o:      o,
		sess:   sess,
		gctx:   governance.NewContext(sess.ID, query, sess.ViolationCount),
		out:    out,
		parent: parent,
		ctx:    ctx,
		cancel: cancel,
		span:   span,
		record: &evidence.TurnRecord{
			SessionID:        sess.ID,
			Query:            query,
			ViolationsBefore: sess.ViolationCount,
			Provider:         o.generator.Name(),
			StartedAt:        started,
		},
		started: started,
	}
}

func (t *turn) execute() {
	o := t.o
	query := t.gctx.Query
	t.sess.State = session.StateThinking

	if res := o.limiter.Allow(t.sess.ID); !res.Allowed {
		t.record.Reason = res.Reason
		t.gctx.AddLogf(governance.ActionRateLimit, governance.StatusWarn,
			"%s, retry in %s", res.Reason, res.RetryAfter.Round(time.Second))
		t.respond(evidence.OutcomeRateLimited, Response{
			Content:        governance.RateLimitResponse(res.RetryAfter),
			ViolationCount: t.sess.ViolationCount,
		})
		return
	}

	sub, isSubmission := ParseSubmission(query)

	qt, ok := t.classify(isSubmission)
	if !ok {
		return
	}

	decision := policy.Decide(qt, t.sess.ViolationCount)
	t.record.Decision = decision.Status
	t.record.Reason = decision.Reason
	o.metrics.RecordPolicyDecision(string(qt), string(decision.Status))

	switch decision.Status {
	case governance.StatusPass:
	case governance.StatusWarn:
		t.gctx.AddLog(governance.ActionPolicyEnforcement, governance.StatusWarn, decision.Reason)
		t.sess.ViolationCount = policy.Strike(t.sess.ViolationCount)
		t.respond(evidence.OutcomeRefused, Response{
			Content:        governance.RefusalResponse(qt),
			ViolationCount: t.sess.ViolationCount,
		})
		return
	case governance.StatusBlock, governance.StatusPending:
		t.gctx.AddLog(governance.ActionPolicyEnforcement, governance.StatusBlock, decision.Reason)
		t.sess.ViolationCount = policy.Strike(t.sess.ViolationCount)
		t.block()
		t.respond(evidence.OutcomeBlocked, Response{
			Content:        governance.SecurityAlertResponse(),
			Blocked:        true,
			ViolationCount: t.sess.ViolationCount,
		})
		return
	}

	if pii := o.scanner.DetectPII(query); len(pii) > 0 {
		t.record.PIIDetected = pii
		t.gctx.AddLogf(governance.ActionPIIScan, governance.StatusWarn,
			"POTENTIAL PII DETECTED (%s)", strings.Join(pii, ", "))
	}
	t.gctx.AddLog(governance.ActionAccessGranted, governance.StatusPass, "Retrieving verified context...")
	if !t.flush() {
		return
	}

	if policy.IsVetting(qt) {
		if domain := inferDomain(o.domains, query); domain != "" {
			t.sess.ContextDomain = domain
		}
	}
	t.sess.State = session.StateActing

	if isSubmission {
		text, leadID, terminated := t.submit(sub)
		t.conclude(qt, text, false, leadID, terminated, true)
		return
	}

	raw, ok := t.generate()
	if !ok {
		return
	}
	t.conclude(qt, stripTrigger(raw), strings.Contains(raw, ContactTrigger), "", false, false)
}

// classify resolves the query category: heuristic scan first, then the
// structured submission shortcut, then the LLM classifier.
func (t *turn) classify(isSubmission bool) (governance.QueryType, bool) {
	o := t.o
	t.gctx.AddLog(governance.ActionIdentifyingIntent, governance.StatusPending, "Running Semantic Analysis...")
	if !t.flush() {
		return "", false
	}

	var qt governance.QueryType
	if hit, ok := o.scanner.Scan(t.gctx.Query); ok {
		qt = hit.Category
		t.record.HeuristicGroup = hit.Group
		t.gctx.AddLogf(governance.ActionHeuristicHit, governance.StatusWarn,
			"Threat pattern matched: %s/%s", hit.Group, hit.PatternID)
	} else if isSubmission {
		qt = governance.QueryContactRequest
		t.gctx.AddLog(governance.ActionSubmissionReceived, governance.StatusPass, "Structured contact submission")
	} else {
		ctx, span := o.tracer.Start(t.ctx, "governance.classify")
		res := o.classifier.Classify(ctx, t.gctx.Query)
		tracing.SetStatus(span, res.Err)
		span.End()

		qt = res.Category
		if res.FailedOpen {
			t.record.FailedOpen = true
			t.gctx.AddLogf(governance.ActionIntentFallback, governance.StatusWarn,
				"Classifier unavailable, defaulting to %s", qt)
		}
	}

	if !t.record.FailedOpen {
		t.gctx.AddLogf(governance.ActionIntentIdentified, governance.StatusPass, "Category: %s", qt)
	}
	t.gctx.QueryType = qt
	t.record.Category = qt
	t.span.SetAttributes(attribute.String("query.category", string(qt)))
	return qt, t.flush()
}

// generate streams a response and forwards each chunk as it arrives.
func (t *turn) generate() (string, bool) {
	o := t.o
	req, layers := o.prompts.Build(t.gctx.Query, t.sess.ContextDomain)

	if len(layers) > 0 {
		t.gctx.AddLogf(governance.ActionContextRouting, governance.StatusPass,
			"Injecting context layers: %s", strings.Join(layers, ", "))
	} else {
		t.gctx.AddLog(governance.ActionContextRouting, governance.StatusPass, "Core persona only")
	}
	details := "Consulting " + o.generator.Name()
	for _, l := range layers {
		details += " + " + l
	}
	t.gctx.AddLog(governance.ActionGenerating, governance.StatusPending, details)
	if !t.flush() {
		return "", false
	}

	t.sess.State = session.StateResponding
	ctx, span := o.tracer.Start(t.ctx, "generation.stream",
		trace.WithAttributes(attribute.String("generation.provider", o.generator.Name())))
	defer span.End()

	start := o.now()
	chunks, err := o.generator.Stream(ctx, req)
	if err != nil {
		tracing.SetStatus(span, err)
		t.fail(err)
		return "", false
	}

	var sb strings.Builder
	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case chunk, ok := <-chunks:
			if !ok {
				done = true
				break
			}
			if chunk.Error != nil {
				tracing.SetStatus(span, chunk.Error)
				t.fail(chunk.Error)
				return "", false
			}
			if chunk.Delta == "" {
				continue
			}
			sb.WriteString(chunk.Delta)
			if !t.send(streamEvent(t.sess.ID, chunk.Delta)) {
				return "", false
			}
		}
	}
	if err := ctx.Err(); err != nil {
		tracing.SetStatus(span, err)
		t.fail(err)
		return "", false
	}

	elapsed := o.now().Sub(start)
	t.record.GenerationLatency = elapsed
	o.metrics.ObserveGeneration(o.generator.Name(), "stream", elapsed)
	tracing.SetStatus(span, nil)
	return sb.String(), true
}

// submit captures and announces a structured submission in place of
// generation. Failures degrade to an apology.
func (t *turn) submit(sub Submission) (text, leadID string, terminated bool) {
	o := t.o
	if o.capturer == nil {
		t.err = errors.New("lead capture is not configured")
		t.gctx.AddLog(governance.ActionLeadCaptureFailed, governance.StatusWarn, t.err.Error())
		return uplinkApology(o.config.Subject), "", false
	}

	id, err := o.capturer.Capture(t.ctx, sub.Name, sub.Email, sub.Message)
	if err != nil {
		t.err = err
		o.logger.ErrorContext(t.ctx, "lead capture failed", "error", err)
		t.gctx.AddLog(governance.ActionLeadCaptureFailed, governance.StatusWarn, "Capture failed")
		return uplinkApology(o.config.Subject), "", false
	}
	t.record.LeadID = id
	o.metrics.RecordLeadCaptured()

	if o.notifier != nil {
		lead := leads.Lead{
			ID:        id,
			Timestamp: o.now(),
			Name:      sub.Name,
			Email:     sub.Email,
			Message:   sub.Message,
			Status:    leads.StatusNew,
			Source:    leads.DefaultSource,
		}
		sent, err := o.notifier.Notify(t.ctx, lead)
		if err != nil {
			t.err = err
			o.logger.ErrorContext(t.ctx, "lead notification failed", "lead_id", id, "error", err)
			t.gctx.AddLogf(governance.ActionLeadCaptureFailed, governance.StatusWarn, "Notification failed for %s", id)
			return uplinkApology(o.config.Subject), id, false
		}
		o.logger.InfoContext(t.ctx, "lead captured", "lead_id", id, "notified", sent)
	}

	return acknowledgement(sub.Name, id, o.config.Subject), id, true
}

// conclude validates text, applies the trap penalty or decay, and emits the
// final audit entries and response.
func (t *turn) conclude(qt governance.QueryType, text string, contactRequested bool, leadID string, terminated, submission bool) {
	o := t.o

	res := o.validator.Validate(t.gctx, text)
	o.metrics.RecordClaims(len(res.Verified), len(res.Blocked))
	t.record.FactsVerified = len(t.gctx.VerifiedFacts)
	t.record.ClaimsFiltered = len(t.gctx.BlockedClaims)

	if res.TrapTriggered {
		t.record.TrapTriggered = true
		o.metrics.RecordHallucinationTrap()
		t.sess.ViolationCount = policy.Trap(t.sess.ViolationCount)
		t.block()
		t.gctx.AddLog(governance.ActionHallucinationTrap, governance.StatusBlock,
			"Deviation from verified facts detected")
		t.respond(evidence.OutcomeTrapBlocked, Response{
			Content:        governance.HallucinationAlertResponse(),
			Blocked:        true,
			ViolationCount: t.sess.ViolationCount,
			FactsVerified:  len(t.gctx.VerifiedFacts),
			ClaimsFiltered: len(t.gctx.BlockedClaims),
		})
		return
	}

	// Only the last few validation entries go out on the stream; the
	// evidence record keeps all of them.
	tail := t.gctx.AuditSince(t.emitted)
	if n := o.config.AuditTail; len(tail) > n {
		tail = tail[len(tail)-n:]
	}
	for _, entry := range tail {
		if !t.send(auditEvent(entry)) {
			return
		}
	}
	t.emitted = t.gctx.AuditLen()

	if policy.IsVetting(qt) && t.sess.ViolationCount > 0 {
		before := t.sess.ViolationCount
		t.sess.ViolationCount = policy.Decay(before)
		t.gctx.AddLogf(governance.ActionGovernanceDecay, governance.StatusPass,
			"Strikes: %d -> %d", before, t.sess.ViolationCount)
	}
	if leadID != "" && terminated {
		t.gctx.AddLogf(governance.ActionLeadCaptured, governance.StatusPass, "ID: %s", leadID)
	}
	t.gctx.AddLogf(governance.ActionResponseComplete, governance.StatusPass,
		"Verified %d facts", len(t.gctx.VerifiedFacts))

	content := res.Text
	if content == "" {
		if res.Filtered() {
			content = governance.UnverifiableResponse()
		} else {
			content = strings.TrimSpace(text)
		}
	}

	outcome := evidence.OutcomeAnswered
	if submission {
		outcome = evidence.OutcomeLeadFailed
		if terminated {
			outcome = evidence.OutcomeLeadCaptured
		}
	}
	t.record.ResponseHash = recorder.HashString(content)

	t.respond(outcome, Response{
		Content:           content,
		ViolationCount:    t.sess.ViolationCount,
		FactsVerified:     len(t.gctx.VerifiedFacts),
		ClaimsFiltered:    len(t.gctx.BlockedClaims),
		ContactRequested:  contactRequested,
		SessionTerminated: terminated,
	})
}

// block moves the session to BLOCKED for the rest of the turn. finish
// returns it to IDLE.
func (t *turn) block() {
	t.sess.State = session.StateBlocked
}

// fail ends the turn with a recoverable error event unless the caller has
// gone away.
func (t *turn) fail(err error) {
	t.err = err
	if t.parent.Err() != nil {
		return
	}
	t.o.logger.ErrorContext(t.ctx, "generation failed",
		"provider", t.o.generator.Name(),
		"error", err,
	)
	t.gctx.AddLogf(governance.ActionGenerationFailed, governance.StatusWarn, "%v", err)
	t.outcome = evidence.OutcomeError
	if t.flush() {
		t.terminal = t.send(errorEvent(agentError(err)))
	}
}

func (t *turn) respond(outcome evidence.Outcome, r Response) {
	t.outcome = outcome
	if !t.flush() {
		return
	}
	t.terminal = t.send(responseEvent(r))
}

// flush emits every audit entry not yet sent.
func (t *turn) flush() bool {
	for _, entry := range t.gctx.AuditSince(t.emitted) {
		if !t.send(auditEvent(entry)) {
			return false
		}
		t.emitted++
	}
	return true
}

func (t *turn) send(ev Event) bool {
	if t.parent.Err() != nil {
		return false
	}
	select {
	case t.out <- ev:
		return true
	case <-t.parent.Done():
		return false
	}
}

// finish runs on every exit path: it returns the session to IDLE, appends a
// thought step, persists the session and records evidence. A block survives
// only in the strike count, the thought step and the evidence outcome.
func (t *turn) finish() {
	o := t.o
	defer t.cancel()
	defer t.span.End()

	if !t.terminal && t.parent.Err() != nil {
		t.outcome = evidence.OutcomeCancelled
		if t.err == nil {
			t.err = t.parent.Err()
		}
	}
	if t.outcome == "" {
		t.outcome = evidence.OutcomeCancelled
	}

	t.sess.State = session.StateIdle

	now := o.now()
	t.sess.addThought(session.ThoughtStep{
		Thought:     thoughtFor(t.gctx.QueryType),
		Action:      string(t.record.Decision),
		Observation: string(t.outcome),
		Timestamp:   now,
	}, o.config.ThoughtChainLimit)

	// Persistence and evidence outlive a cancelled caller.
	ctx := context.WithoutCancel(t.parent)
	o.persist(ctx, t.sess)

	t.record.ContextDomain = t.sess.ContextDomain
	t.record.ViolationsAfter = t.sess.ViolationCount
	t.record.Outcome = t.outcome
	t.record.AuditLog = t.gctx.AuditLog()
	t.record.CompletedAt = now
	if t.err != nil {
		t.record.Error = t.err.Error()
	}
	o.recordEvidence(ctx, t.record)

	elapsed := now.Sub(t.started)
	o.metrics.RecordTurn(string(t.outcome), elapsed)

	t.span.SetAttributes(
		attribute.String("turn.outcome", string(t.outcome)),
		attribute.Int("session.violations_after", t.sess.ViolationCount),
	)
	if t.outcome == evidence.OutcomeError {
		tracing.SetStatus(t.span, t.err)
	} else {
		tracing.SetStatus(t.span, nil)
	}

	o.logger.InfoContext(t.parent, "turn completed",
		"outcome", t.outcome,
		"category", t.record.Category,
		"decision", t.record.Decision,
		"violations", t.sess.ViolationCount,
		"duration", elapsed,
	)
}

func thoughtFor(qt governance.QueryType) string {
	if qt == "" {
		return "Query received"
	}
	return fmt.Sprintf("Query classified as %s", qt)
}
