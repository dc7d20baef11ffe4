package heuristics

import (
	"log/slog"
	"sync/atomic"

	"atlas-g/protocol/pkg/governance"
)

// Library holds the active tables. Readers always see a complete, compiled
// set; Replace swaps the whole set atomically.
type Library struct {
	current atomic.Pointer[Tables]
}

// NewLibrary creates a library serving t.
func NewLibrary(t *Tables) *Library {
	l := &Library{}
	l.current.Store(t)
	return l
}

// Tables returns the active tables.
func (l *Library) Tables() *Tables {
	return l.current.Load()
}

// Replace makes t the active tables. A nil t is ignored.
func (l *Library) Replace(t *Tables) {
	if t != nil {
		l.current.Store(t)
	}
}

// ReloadFrom parses path and, only if it is valid, makes it active.
func (l *Library) ReloadFrom(path string) error {
	t, err := LoadFile(path)
	if err != nil {
		return err
	}
	l.Replace(t)
	return nil
}

// Hit describes the pattern that decided a heuristic classification.
type Hit struct {
	Category  governance.QueryType
	Group     string
	PatternID string
}

// Scanner is the pre-LLM threat filter. It makes no external calls.
type Scanner struct {
	library *Library
	logger  *slog.Logger
	onHit   func(group string)
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithHitObserver registers a callback invoked with the group name of every hit.
func WithHitObserver(fn func(group string)) ScannerOption {
	return func(s *Scanner) {
		s.onHit = fn
	}
}

// NewScanner creates a scanner over the library's active tables.
func NewScanner(library *Library, logger *slog.Logger, opts ...ScannerOption) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{
		library: library,
		logger:  logger.With("component", "governance.heuristics"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Scan checks query against the threat groups in priority order and returns
// the first hit. ok is false when nothing matches.
func (s *Scanner) Scan(query string) (hit Hit, ok bool) {
	tables := s.library.Tables()
	for _, group := range tables.ThreatGroups {
		for _, p := range group.Patterns {
			if !p.MatchString(query) {
				continue
			}
			s.logger.Info("heuristic hit",
				"group", group.Name,
				"pattern", p.ID,
				"category", group.Category,
			)
			if s.onHit != nil {
				s.onHit(group.Name)
			}
			return Hit{Category: group.Category, Group: group.Name, PatternID: p.ID}, true
		}
	}
	return Hit{}, false
}

// DetectPII returns the ids of the PII patterns found in text, in table order.
func (s *Scanner) DetectPII(text string) []string {
	var found []string
	for _, p := range s.library.Tables().PII {
		if p.MatchString(text) {
			found = append(found, p.ID)
		}
	}
	return found
}
