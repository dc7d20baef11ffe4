// Package claims checks generated text sentence by sentence against the
// Knowledge Graph before it reaches a user.
package claims

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"atlas-g/protocol/pkg/governance"
	"atlas-g/protocol/pkg/governance/heuristics"
	"atlas-g/protocol/pkg/knowledge"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Severity grades a rejected sentence.
type Severity string

const (
	// SeverityNone is used for accepted sentences.
	SeverityNone Severity = ""

	// SeverityUnverified marks an assertion with no support in the graph.
	SeverityUnverified Severity = "UNVERIFIED"

	// SeverityCritical marks a hallucination-trap match.
	SeverityCritical Severity = "CRITICAL"
)

// Verdict is the outcome for one sentence.
type Verdict struct {
	Sentence string
	Accepted bool
	Severity Severity
	Reason   string
}

// Result is the outcome of validating a full response.
type Result struct {
	// Text is the concatenation of accepted sentences, trimmed.
	Text string

	// Verified and Blocked hold the trimmed sentence texts.
	Verified []string
	Blocked  []string

	// Verdicts holds one entry per sentence in order.
	Verdicts []Verdict

	// TrapTriggered is set when any sentence matched a hallucination trap.
	TrapTriggered bool

	// Truncated holds a discarded trailing fragment, if any.
	Truncated string
}

// Filtered reports whether any sentence was rejected.
func (r *Result) Filtered() bool {
	return len(r.Blocked) > 0
}

// Validator checks sentences against a graph and the active trap patterns.
// It holds no per-call state and is safe for concurrent use.
type Validator struct {
	graph   *knowledge.Graph
	library *heuristics.Library
}

// NewValidator creates a validator over graph, reading trap and assertion
// patterns from library on every call.
func NewValidator(graph *knowledge.Graph, library *heuristics.Library) *Validator {
	if graph == nil {
		graph = knowledge.Build("")
	}
	return &Validator{graph: graph, library: library}
}

// SplitSentences splits text after each run of terminal punctuation, keeping
// the delimiter and any leading whitespace attached to its sentence. A
// trailing fragment with no terminal punctuation is returned separately.
func SplitSentences(text string) (sentences []string, truncated string) {
	prev := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		sentences = append(sentences, text[prev:loc[1]])
		prev = loc[1]
	}
	if rest := text[prev:]; strings.TrimSpace(rest) != "" {
		truncated = strings.TrimSpace(rest)
	}
	return sentences, truncated
}

// Check returns the verdict for a single sentence.
func (v *Validator) Check(sentence string) Verdict {
	clean := strings.TrimSpace(sentence)
	tables := v.library.Tables()

	for _, trap := range tables.HallucinationTraps {
		if trap.MatchString(clean) {
			return Verdict{
				Sentence: clean,
				Severity: SeverityCritical,
				Reason:   "CRITICAL: Hallucination Trap Triggered",
			}
		}
	}

	if employer, ok := v.graph.MentionedEmployer(clean); ok {
		return Verdict{Sentence: clean, Accepted: true, Reason: "Verified employer: " + employer}
	}
	if project, ok := v.graph.MentionedProject(clean); ok {
		return Verdict{Sentence: clean, Accepted: true, Reason: "Verified project: " + project}
	}

	for _, marker := range tables.AssertionMarkers {
		if !marker.MatchString(clean) {
			continue
		}
		if _, ok := v.graph.MentionedSkill(clean); ok {
			return Verdict{Sentence: clean, Accepted: true, Reason: "Claim verified against skills"}
		}
		return Verdict{
			Sentence: clean,
			Severity: SeverityUnverified,
			Reason:   "Claim not verifiable against trusted record",
		}
	}

	return Verdict{Sentence: clean, Accepted: true, Reason: "General statement"}
}

// Validate checks every complete sentence of text and records the outcome in
// gctx: accepted sentences go to VerifiedFacts, rejected ones to
// BlockedClaims with a CLAIM VALIDATION entry each, followed by one
// GOVERNANCE LAYER summary entry.
func (v *Validator) Validate(gctx *governance.Context, text string) *Result {
	sentences, truncated := SplitSentences(text)
	res := &Result{Truncated: truncated}

	var kept strings.Builder
	for _, s := range sentences {
		if strings.TrimSpace(s) == "" {
			continue
		}

		verdict := v.Check(s)
		res.Verdicts = append(res.Verdicts, verdict)

		if verdict.Accepted {
			kept.WriteString(s)
			res.Verified = append(res.Verified, verdict.Sentence)
			gctx.VerifiedFacts = append(gctx.VerifiedFacts, verdict.Sentence)
			continue
		}

		if verdict.Severity == SeverityCritical {
			res.TrapTriggered = true
		}
		res.Blocked = append(res.Blocked, verdict.Sentence)
		gctx.BlockedClaims = append(gctx.BlockedClaims, verdict.Sentence)
		gctx.AddLog(governance.ActionClaimValidation, governance.StatusBlock,
			"Unverified: "+preview(verdict.Sentence, 50))
	}

	if res.Filtered() {
		gctx.AddLogf(governance.ActionGovernanceLayer, governance.StatusWarn,
			"%d claims filtered", len(res.Blocked))
	} else {
		gctx.AddLog(governance.ActionGovernanceLayer, governance.StatusPass, "ALL CLAIMS VERIFIED")
	}

	res.Text = strings.TrimSpace(kept.String())
	return res
}

func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return fmt.Sprintf("%s...", string(r[:n]))
}
