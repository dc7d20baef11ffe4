package heuristics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefault(t *testing.T) {
	tables, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() failed: %v", err)
	}

	if len(tables.ThreatGroups) != 3 {
		t.Fatalf("expected 3 threat groups, got %d", len(tables.ThreatGroups))
	}

	wantOrder := []string{"jailbreak", "credential_probe", "code_execution"}
	for i, name := range wantOrder {
		if tables.ThreatGroups[i].Name != name {
			t.Errorf("group %d: expected %q, got %q", i, name, tables.ThreatGroups[i].Name)
		}
	}

	if len(tables.HallucinationTraps) == 0 {
		t.Error("expected hallucination traps")
	}
	if len(tables.AssertionMarkers) == 0 {
		t.Error("expected assertion markers")
	}
	if tables.PatternCount() < 25 {
		t.Errorf("expected at least 25 patterns, got %d", tables.PatternCount())
	}
}

func TestParse_SortsByPriority(t *testing.T) {
	tables, err := Parse([]byte(`
threat_groups:
  - name: low
    category: CODE_EXECUTION_ATTEMPT
    priority: 1
    patterns: [{id: a, regex: 'alpha'}]
  - name: high
    category: SECURITY_PROBE
    priority: 10
    patterns: [{id: b, regex: 'alpha'}]
`))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}

	if tables.ThreatGroups[0].Name != "high" {
		t.Errorf("expected high priority group first, got %q", tables.ThreatGroups[0].Name)
	}

	hit, ok := NewScanner(NewLibrary(tables), nil).Scan("ALPHA")
	if !ok || hit.Group != "high" {
		t.Errorf("expected case-insensitive hit on high group, got %+v ok=%v", hit, ok)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			yaml:    "threat_groups: [",
			wantErr: "failed to parse",
		},
		{
			name:    "no groups",
			yaml:    "version: 1",
			wantErr: "no threat groups",
		},
		{
			name: "unknown category",
			yaml: `
threat_groups:
  - name: g
    category: NOT_A_CATEGORY
    patterns: [{id: a, regex: 'x'}]`,
			wantErr: "unknown query type",
		},
		{
			name: "category not assignable",
			yaml: `
threat_groups:
  - name: g
    category: OFF_TOPIC
    patterns: [{id: a, regex: 'x'}]`,
			wantErr: "cannot be assigned heuristically",
		},
		{
			name: "bad regex",
			yaml: `
threat_groups:
  - name: g
    category: SECURITY_PROBE
    patterns: [{id: a, regex: '(unclosed'}]`,
			wantErr: "failed to compile",
		},
		{
			name: "duplicate group",
			yaml: `
threat_groups:
  - name: g
    category: SECURITY_PROBE
    patterns: [{id: a, regex: 'x'}]
  - name: g
    category: SECURITY_PROBE
    patterns: [{id: b, regex: 'y'}]`,
			wantErr: "duplicate threat group",
		},
		{
			name: "empty group",
			yaml: `
threat_groups:
  - name: g
    category: SECURITY_PROBE`,
			wantErr: "has no patterns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patterns.yaml")
	if err := os.WriteFile(path, DefaultPatterns(), 0o644); err != nil {
		t.Fatalf("failed to write pattern file: %v", err)
	}

	lib := NewLibrary(MustLoadDefault())
	w, err := NewWatcher(path, lib, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(t.Context()) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	updated := `
threat_groups:
  - name: only
    category: SECURITY_PROBE
    priority: 1
    patterns: [{id: marker, regex: 'zebra'}]
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("failed to rewrite pattern file: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if groups := lib.Tables().ThreatGroups; len(groups) == 1 && groups[0].Name == "only" {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if groups := lib.Tables().ThreatGroups; len(groups) != 1 || groups[0].Name != "only" {
		t.Fatalf("tables were not reloaded, have %d groups", len(groups))
	}

	// An invalid edit must keep the previous tables.
	if err := os.WriteFile(path, []byte("threat_groups: ["), 0o644); err != nil {
		t.Fatalf("failed to write invalid file: %v", err)
	}
	time.Sleep(200 * time.Millisecond)
	if groups := lib.Tables().ThreatGroups; len(groups) != 1 || groups[0].Name != "only" {
		t.Errorf("invalid edit replaced tables")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Watch() returned error: %v", err)
	}
}
