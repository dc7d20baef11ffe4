// Package agent implements the governance-gated Thought-Action loop.
//
// One turn runs as:
//
//	IDLE -> THINKING   heuristic scan, intent classification, policy decision
//	     -> ACTING     PII scan, domain inference, context routing
//	     -> RESPONDING streamed generation, claim validation
//	     -> IDLE
//
// A WARN or BLOCK decision ends the turn before generation. A hallucination
// trap in the validated text ends it with a double strike. A blocked turn
// holds BLOCKED until it ends; every turn leaves the session IDLE.
// Structured contact submissions skip classification and generation; they
// are captured and the acknowledgement is validated like generated text. With a rate limiter configured, a turn over the
// session's budget is refused before the scan and costs no strike.
//
// Think streams a turn as ordered Events: zero or more audit and stream
// events followed by exactly one response or error event. A turn abandoned
// through its context emits no terminal event but is still persisted and
// recorded as cancelled.
//
// The Orchestrator holds only read-only collaborators and is shared by all
// sessions. A Session belongs to one turn at a time.
package agent
