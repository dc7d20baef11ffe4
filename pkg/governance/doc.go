// Package governance defines the vocabulary shared by every compliance stage:
// the closed query categories, the compliance statuses, audit log entries and
// the per-turn GovernanceContext.
//
// The stages themselves live in subpackages:
//
//   - heuristics: editable pattern tables and the pre-LLM threat scanner
//   - classifier: semantic intent classification with fail-open
//   - policy: the pure strike-based decision function
//   - claims: sentence-level validation of generated text
//
// # Closed Enumerations
//
// QueryType and ComplianceStatus are closed sets. Decision points switch over
// every value explicitly; values outside the set are rejected by Parse
// functions and fail closed wherever they could still reach a decision.
package governance
