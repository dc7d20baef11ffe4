package heuristics

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"atlas-g/protocol/pkg/governance"
)

// defaultPatterns holds the built-in tables compiled into the binary.
//
//go:embed default_patterns.yaml
var defaultPatterns []byte

// DefaultPatterns returns the raw YAML of the built-in tables.
func DefaultPatterns() []byte {
	out := make([]byte, len(defaultPatterns))
	copy(out, defaultPatterns)
	return out
}

// Pattern is a single case-insensitive regular expression in a table.
type Pattern struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description,omitempty"`
	Regex       string `yaml:"regex"`

	compiled *regexp.Regexp
}

// MatchString reports whether text contains a match of the pattern.
func (p *Pattern) MatchString(text string) bool {
	return p.compiled != nil && p.compiled.MatchString(text)
}

// ThreatGroup is a named set of patterns that resolves to one category.
type ThreatGroup struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Category    governance.QueryType `yaml:"category"`
	Priority    int                  `yaml:"priority"`
	Patterns    []*Pattern           `yaml:"patterns"`
}

// Tables is an immutable, compiled set of heuristic tables. Obtain one from
// Parse, LoadFile or LoadDefault; never modify it after construction.
type Tables struct {
	Version            int            `yaml:"version"`
	ThreatGroups       []*ThreatGroup `yaml:"threat_groups"`
	HallucinationTraps []*Pattern     `yaml:"hallucination_traps"`
	AssertionMarkers   []*Pattern     `yaml:"assertion_markers"`
	PII                []*Pattern     `yaml:"pii"`
}

// scannerCategories are the only categories a threat group may resolve to.
var scannerCategories = map[governance.QueryType]bool{
	governance.QuerySecurityProbe:        true,
	governance.QueryCodeExecutionAttempt: true,
}

// Parse decodes, validates and compiles tables from YAML.
// Threat groups are sorted by descending priority; ties keep file order.
func Parse(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse pattern tables: %w", err)
	}

	if len(t.ThreatGroups) == 0 {
		return nil, fmt.Errorf("pattern tables define no threat groups")
	}

	seen := make(map[string]bool, len(t.ThreatGroups))
	for i, g := range t.ThreatGroups {
		if g == nil || g.Name == "" {
			return nil, fmt.Errorf("threat group %d has no name", i)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("duplicate threat group %q", g.Name)
		}
		seen[g.Name] = true

		cat, err := governance.ParseQueryType(string(g.Category))
		if err != nil {
			return nil, fmt.Errorf("threat group %q: %w", g.Name, err)
		}
		if !scannerCategories[cat] {
			return nil, fmt.Errorf("threat group %q: category %s cannot be assigned heuristically", g.Name, cat)
		}
		g.Category = cat

		if len(g.Patterns) == 0 {
			return nil, fmt.Errorf("threat group %q has no patterns", g.Name)
		}
		if err := compileAll(g.Patterns, "threat group "+g.Name); err != nil {
			return nil, err
		}
	}

	if err := compileAll(t.HallucinationTraps, "hallucination_traps"); err != nil {
		return nil, err
	}
	if err := compileAll(t.AssertionMarkers, "assertion_markers"); err != nil {
		return nil, err
	}
	if err := compileAll(t.PII, "pii"); err != nil {
		return nil, err
	}

	sort.SliceStable(t.ThreatGroups, func(i, j int) bool {
		return t.ThreatGroups[i].Priority > t.ThreatGroups[j].Priority
	})

	return &t, nil
}

// LoadFile reads and parses tables from a YAML file.
func LoadFile(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern file %q: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("pattern file %q: %w", path, err)
	}
	return t, nil
}

// LoadDefault parses the built-in tables.
func LoadDefault() (*Tables, error) {
	return Parse(defaultPatterns)
}

// MustLoadDefault is LoadDefault for package initialisation and tests.
// It panics if the built-in tables are invalid.
func MustLoadDefault() *Tables {
	t, err := LoadDefault()
	if err != nil {
		panic(err)
	}
	return t
}

// PatternCount returns the number of compiled patterns across all tables.
func (t *Tables) PatternCount() int {
	n := len(t.HallucinationTraps) + len(t.AssertionMarkers) + len(t.PII)
	for _, g := range t.ThreatGroups {
		n += len(g.Patterns)
	}
	return n
}

func compileAll(patterns []*Pattern, where string) error {
	ids := make(map[string]bool, len(patterns))
	for i, p := range patterns {
		if p == nil || strings.TrimSpace(p.Regex) == "" {
			return fmt.Errorf("%s: pattern %d has an empty regex", where, i)
		}
		if p.ID == "" {
			p.ID = fmt.Sprintf("%s-%d", strings.ReplaceAll(where, " ", "-"), i)
		}
		if ids[p.ID] {
			return fmt.Errorf("%s: duplicate pattern id %q", where, p.ID)
		}
		ids[p.ID] = true

		expr := p.Regex
		if !strings.HasPrefix(expr, "(?i)") {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return fmt.Errorf("%s: failed to compile pattern %q: %w", where, p.ID, err)
		}
		p.compiled = re
	}
	return nil
}
