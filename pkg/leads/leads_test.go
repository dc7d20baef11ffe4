package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

var leadIDPattern = regexp.MustCompile(`^LEAD-[0-9A-F]{8}$`)

func TestNewLeadID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewLeadID()
		if !leadIDPattern.MatchString(id) {
			t.Fatalf("unexpected id format %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(SQLiteConfig{Path: filepath.Join(t.TempDir(), "leads.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_Capture(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.Capture(ctx, "  Jane Recruiter ", "jane@example.com", "Let's talk about a role.")
	if err != nil {
		t.Fatalf("Capture() failed: %v", err)
	}
	if !leadIDPattern.MatchString(id) {
		t.Errorf("unexpected id %q", id)
	}

	lead, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if lead.Name != "Jane Recruiter" {
		t.Errorf("expected trimmed name, got %q", lead.Name)
	}
	if lead.Status != StatusNew || lead.Source != DefaultSource {
		t.Errorf("unexpected status/source %s/%s", lead.Status, lead.Source)
	}
	if lead.Timestamp.IsZero() {
		t.Error("expected timestamp")
	}
}

func TestSQLiteStore_List(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, name := range []string{"first", "second", "third"} {
		if _, err := store.Capture(ctx, name, name+"@example.com", "hi"); err != nil {
			t.Fatalf("Capture() failed: %v", err)
		}
	}

	leads, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(leads))
	}
	if leads[0].Name != "third" || leads[1].Name != "second" {
		t.Errorf("expected newest first, got %s, %s", leads[0].Name, leads[1].Name)
	}
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "LEAD-NOPE")
	var leadErr *Error
	if !errors.As(err, &leadErr) || leadErr.Operation != "get" {
		t.Errorf("expected get Error, got %v", err)
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteConfig{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestResendNotifier_NotConfigured(t *testing.T) {
	n := NewResendNotifier(ResendConfig{APIKey: "key"})
	sent, err := n.Notify(context.Background(), Lead{ID: "LEAD-1"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sent {
		t.Error("expected sent=false when not configured")
	}
}

func TestResendNotifier_Notify(t *testing.T) {
	var got resendEmail
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"email-1"}`))
	}))
	defer srv.Close()

	n := NewResendNotifier(ResendConfig{
		APIKey:   "re_test",
		From:     "agent@example.com",
		To:       "owner@example.com",
		Endpoint: srv.URL,
	})

	sent, err := n.Notify(context.Background(), Lead{
		ID:      "LEAD-ABCDEF12",
		Name:    "Jane <script>",
		Email:   "jane@example.com",
		Message: "Hello",
	})
	if err != nil {
		t.Fatalf("Notify() failed: %v", err)
	}
	if !sent {
		t.Fatal("expected sent=true")
	}
	if auth != "Bearer re_test" {
		t.Errorf("unexpected auth header %q", auth)
	}
	if got.Subject != "New Lead: Jane <script>" {
		t.Errorf("unexpected subject %q", got.Subject)
	}
	if len(got.To) != 1 || got.To[0] != "owner@example.com" {
		t.Errorf("unexpected recipients %v", got.To)
	}
	if strings.Contains(got.HTML, "<script>") {
		t.Error("lead fields must be escaped in the html body")
	}
	if !strings.Contains(got.HTML, "LEAD-ABCDEF12") {
		t.Error("html body should contain the lead id")
	}
}

func TestResendNotifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewResendNotifier(ResendConfig{APIKey: "bad", From: "a@example.com", To: "b@example.com", Endpoint: srv.URL})
	sent, err := n.Notify(context.Background(), Lead{ID: "LEAD-1"})
	if sent {
		t.Error("expected sent=false")
	}
	var leadErr *Error
	if !errors.As(err, &leadErr) {
		t.Fatalf("expected leads Error, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("expected status in error, got %v", err)
	}
}
