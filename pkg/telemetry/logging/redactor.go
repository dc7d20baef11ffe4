package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// RedactPattern is a user-supplied redaction rule.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Common PII pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
	PatternEmail       = "email"
	PatternCreditCard  = "credit_card"
	PatternSSN         = "ssn"
)

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
	replaceFunc func(string) string
}

func (p *redactPattern) apply(s string) string {
	if p.replaceFunc != nil {
		return p.regex.ReplaceAllStringFunc(s, p.replaceFunc)
	}
	return p.regex.ReplaceAllString(s, p.replacement)
}

// Redactor masks PII in log attribute values. Patterns apply in order.
type Redactor struct {
	patterns []*redactPattern
}

// NewRedactor creates a redactor with the built-in patterns followed by
// custom. An invalid custom pattern is an error.
func NewRedactor(custom []RedactPattern) (*Redactor, error) {
	r := &Redactor{patterns: defaultPatterns()}
	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p.Name, err)
		}
		r.patterns = append(r.patterns, &redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}
	return r, nil
}

func defaultPatterns() []*redactPattern {
	return []*redactPattern{
		{
			name:        PatternAPIKey,
			regex:       regexp.MustCompile(`\b(?:sk-[A-Za-z0-9_-]{8,}|AIza[0-9A-Za-z_-]{20,}|re_[A-Za-z0-9_]{8,})`),
			replaceFunc: RedactAPIKey,
		},
		{
			name:        PatternBearerToken,
			regex:       regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`),
			replacement: "Bearer ***",
		},
		{
			name:        PatternPassword,
			regex:       regexp.MustCompile(`(?i)(password|passwd|pwd)[:=]\s*\S+`),
			replacement: "$1: ***",
		},
		{
			name:        PatternEmail,
			regex:       regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
			replaceFunc: RedactEmail,
		},
		{
			name:        PatternCreditCard,
			regex:       regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`),
			replaceFunc: RedactCreditCard,
		},
		{
			name:        PatternSSN,
			regex:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
			replacement: "***-**-****",
		},
	}
}

// RedactString applies every pattern to value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.apply(value)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook. Attributes with a
// sensitive key are masked whole; other string and error values are scanned.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && (a.Key == slog.TimeKey || a.Key == slog.LevelKey || a.Key == slog.SourceKey) {
		return a
	}

	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, maskValue(v.String()))
		}
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, r.RedactString(err.Error()))
		}
		if isSensitiveKey(a.Key) {
			return slog.String(a.Key, "***")
		}
	}
	return a
}

var sensitiveKeys = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey",
	"authorization", "ssn", "credit_card", "private_key",
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}

// RedactEmail keeps the first character of the local part and the domain.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	if at == 0 {
		return "***" + email[at:]
	}
	return email[:1] + "***" + email[at:]
}

// RedactAPIKey keeps a four character prefix.
func RedactAPIKey(apiKey string) string {
	return maskValue(apiKey)
}

// RedactCreditCard keeps only the last four digits.
func RedactCreditCard(cc string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(cc)
	if len(cleaned) < 13 || len(cleaned) > 16 {
		return cc
	}
	return "****-****-****-" + cleaned[len(cleaned)-4:]
}
