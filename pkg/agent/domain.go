package agent

import (
	"regexp"
	"strings"
)

// DomainRule assigns Label to a session when any keyword occurs in a query.
type DomainRule struct {
	Label    string
	Keywords []string
}

// DefaultDomainRules returns the built-in domain labels, checked in order.
func DefaultDomainRules() []DomainRule {
	return []DomainRule{
		{Label: "Healthcare", Keywords: []string{"health", "healthcare", "medical", "patient", "patients", "hipaa", "clinical", "genedx"}},
		{Label: "FinTech", Keywords: []string{"fintech", "banking", "bank", "finance", "financial", "pci", "bcu"}},
		{Label: "LegalTech", Keywords: []string{"legal", "legaltech", "law", "litigation", "voiceverdict"}},
	}
}

// keywordMatcher matches any of a set of whole words or phrases,
// case-insensitively.
type keywordMatcher struct {
	re *regexp.Regexp
}

func newKeywordMatcher(keywords []string) *keywordMatcher {
	alts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		alts = append(alts, regexp.QuoteMeta(k))
	}
	if len(alts) == 0 {
		return &keywordMatcher{}
	}
	return &keywordMatcher{re: regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)}
}

func (m *keywordMatcher) match(text string) bool {
	return m.re != nil && m.re.MatchString(text)
}

type domainMatcher struct {
	label   string
	matcher *keywordMatcher
}

func compileDomainRules(rules []DomainRule) []domainMatcher {
	out := make([]domainMatcher, 0, len(rules))
	for _, r := range rules {
		if r.Label == "" {
			continue
		}
		out = append(out, domainMatcher{label: r.Label, matcher: newKeywordMatcher(r.Keywords)})
	}
	return out
}

// inferDomain returns the label of the first rule matching query, or "".
func inferDomain(rules []domainMatcher, query string) string {
	for _, r := range rules {
		if r.matcher.match(query) {
			return r.label
		}
	}
	return ""
}
