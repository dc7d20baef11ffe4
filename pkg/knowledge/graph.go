// Package knowledge builds the Knowledge Graph used as ground truth for claim
// verification.
//
// A Graph is built once from the trusted document at process start and is
// never mutated afterwards, so it may be shared freely between goroutines.
package knowledge

import (
	"regexp"
	"strings"
)

var (
	employerPattern = regexp.MustCompile(`(?i)Company:\s*(.+?)(?:\n|$)`)
	projectPattern  = regexp.MustCompile(`\[PROJECT:\s*(.+?)\]`)
)

// minSkillLineLen is the shortest bullet line, including its "- " prefix,
// that is treated as a skill entry.
const minSkillLineLen = 6

// Graph holds the employers, projects and skills extracted from the trusted
// document. Lookups are case-insensitive substring matches.
type Graph struct {
	employers []string
	projects  []string
	skills    []string

	employerSet map[string]struct{}
	projectSet  map[string]struct{}
	skillSet    map[string]struct{}
}

// Build parses the trusted document text into a Graph.
//
//   - "Company: <name>" lines name employers (case-insensitive label).
//   - "[PROJECT: <name>]" tags name projects.
//   - "- <text>" bullet lines are skills, in document order.
func Build(document string) *Graph {
	g := &Graph{
		employerSet: make(map[string]struct{}),
		projectSet:  make(map[string]struct{}),
		skillSet:    make(map[string]struct{}),
	}
	if document == "" {
		return g
	}

	for _, m := range employerPattern.FindAllStringSubmatch(document, -1) {
		g.employers = appendUnique(g.employers, g.employerSet, m[1])
	}
	for _, m := range projectPattern.FindAllStringSubmatch(document, -1) {
		g.projects = appendUnique(g.projects, g.projectSet, m[1])
	}
	for _, line := range strings.Split(document, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "- ") && len(line) >= minSkillLineLen {
			g.skills = appendUnique(g.skills, g.skillSet, line[2:])
		}
	}

	return g
}

func appendUnique(list []string, set map[string]struct{}, value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return list
	}
	key := strings.ToLower(value)
	if _, ok := set[key]; ok {
		return list
	}
	set[key] = struct{}{}
	return append(list, value)
}

// Employers returns the known employers in document order.
func (g *Graph) Employers() []string { return clone(g.employers) }

// Projects returns the known projects in document order.
func (g *Graph) Projects() []string { return clone(g.projects) }

// Skills returns the known skills in document order.
func (g *Graph) Skills() []string { return clone(g.skills) }

// HasEmployer reports whether name is a known employer, ignoring case.
func (g *Graph) HasEmployer(name string) bool { return has(g.employerSet, name) }

// HasProject reports whether name is a known project, ignoring case.
func (g *Graph) HasProject(name string) bool { return has(g.projectSet, name) }

// HasSkill reports whether name is a known skill entry, ignoring case.
func (g *Graph) HasSkill(name string) bool { return has(g.skillSet, name) }

// MentionedEmployer returns the first known employer mentioned in text.
func (g *Graph) MentionedEmployer(text string) (string, bool) {
	return firstMention(g.employers, text)
}

// MentionedProject returns the first known project mentioned in text.
func (g *Graph) MentionedProject(text string) (string, bool) {
	return firstMention(g.projects, text)
}

// MentionedSkill returns the first known skill mentioned in text.
func (g *Graph) MentionedSkill(text string) (string, bool) {
	return firstMention(g.skills, text)
}

// Size returns the number of employers, projects and skills.
func (g *Graph) Size() (employers, projects, skills int) {
	return len(g.employers), len(g.projects), len(g.skills)
}

func firstMention(candidates []string, text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, c := range candidates {
		if strings.Contains(lower, strings.ToLower(c)) {
			return c, true
		}
	}
	return "", false
}

func has(set map[string]struct{}, name string) bool {
	_, ok := set[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
