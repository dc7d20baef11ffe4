package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

// testStoreContract runs the behaviour every backend must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("load unknown", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Load(ctx, "missing-"+uuid.NewString())
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save and load", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		snap := &Snapshot{
			ID:             id,
			CreatedAt:      created,
			UpdatedAt:      created.Add(time.Minute),
			State:          StateIdle,
			ContextDomain:  "FinTech",
			ViolationCount: 1,
			ThoughtChain: []ThoughtStep{
				{Thought: "Analyzing query", Action: "RESUME_DEEP_DIVE", Observation: "PASS", Timestamp: created},
			},
		}

		if err := store.Save(ctx, id, snap); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		got, err := store.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if diff := cmp.Diff(snap, got); diff != "" {
			t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("partial save merges", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		chain := []ThoughtStep{{Thought: "first", Timestamp: created}}

		if err := store.Save(ctx, id, &Snapshot{
			CreatedAt:     created,
			UpdatedAt:     created,
			State:         StateIdle,
			ContextDomain: "Healthcare",
			ThoughtChain:  chain,
		}); err != nil {
			t.Fatalf("first Save() failed: %v", err)
		}

		later := created.Add(time.Hour)
		if err := store.Save(ctx, id, &Snapshot{
			CreatedAt:      later,
			UpdatedAt:      later,
			State:          StateBlocked,
			ViolationCount: 3,
		}); err != nil {
			t.Fatalf("second Save() failed: %v", err)
		}

		got, err := store.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if got.ContextDomain != "Healthcare" {
			t.Errorf("context domain erased: %q", got.ContextDomain)
		}
		if diff := cmp.Diff(chain, got.ThoughtChain); diff != "" {
			t.Errorf("thought chain erased (-want +got):\n%s", diff)
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("created_at overwritten: %v", got.CreatedAt)
		}
		if got.State != StateBlocked || got.ViolationCount != 3 {
			t.Errorf("expected BLOCKED/3, got %s/%d", got.State, got.ViolationCount)
		}
		if !got.UpdatedAt.Equal(later) {
			t.Errorf("updated_at not written: %v", got.UpdatedAt)
		}
	})

	t.Run("violation count can return to zero", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		for _, n := range []int{2, 0} {
			if err := store.Save(ctx, id, &Snapshot{UpdatedAt: created, State: StateIdle, ViolationCount: n}); err != nil {
				t.Fatalf("Save() failed: %v", err)
			}
		}
		got, err := store.Load(ctx, id)
		if err != nil {
			t.Fatalf("Load() failed: %v", err)
		}
		if got.ViolationCount != 0 {
			t.Errorf("expected 0 violations, got %d", got.ViolationCount)
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := newStore(t)
		id := uuid.NewString()
		if err := store.Save(ctx, id, &Snapshot{UpdatedAt: created, State: StateIdle}); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if err := store.Delete(ctx, id); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := store.Load(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.Delete(ctx, id); err != nil {
			t.Errorf("deleting unknown id should succeed, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		store := NewMemoryStore()
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestMemoryStore_LoadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()

	if err := store.Save(ctx, "a", &Snapshot{State: StateIdle, ThoughtChain: []ThoughtStep{{Thought: "x"}}}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	got, _ := store.Load(ctx, "a")
	got.ThoughtChain[0].Thought = "mutated"
	got.ViolationCount = 99

	again, _ := store.Load(ctx, "a")
	if again.ThoughtChain[0].Thought != "x" || again.ViolationCount != 0 {
		t.Error("store state was mutated through a loaded snapshot")
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	store := NewMemoryStore()
	store.Close()

	err := store.Save(context.Background(), "a", &Snapshot{})
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %v", err)
	}
	if storeErr.Backend != "memory" || storeErr.Operation != "save" {
		t.Errorf("unexpected error fields %+v", storeErr)
	}
}

func TestSQLiteStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		store, err := NewSQLiteStore(&SQLiteConfig{
			Path:        filepath.Join(t.TempDir(), "sessions.db"),
			BusyTimeout: time.Second,
			WALMode:     true,
		})
		if err != nil {
			t.Fatalf("NewSQLiteStore() failed: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestSQLiteStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sessions.db")

	store, err := NewSQLiteStore(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore() failed: %v", err)
	}
	if err := store.Save(ctx, "persisted", &Snapshot{State: StateBlocked, ViolationCount: 2}); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(&SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx, "persisted")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.State != StateBlocked || got.ViolationCount != 2 {
		t.Errorf("unexpected snapshot %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be filled in")
	}
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("ATLAS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ATLAS_TEST_REDIS_URL not set")
	}

	testStoreContract(t, func(t *testing.T) Store {
		prefix := "atlas-test:" + uuid.NewString() + ":"
		store, err := DialRedis(context.Background(), url, WithKeyPrefix(prefix), WithTTL(time.Minute))
		if err != nil {
			t.Fatalf("DialRedis() failed: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store
	})
}

func TestDialRedis_BadURL(t *testing.T) {
	_, err := DialRedis(context.Background(), "not-a-redis-url")
	var storeErr *StoreError
	if !errors.As(err, &storeErr) || storeErr.Operation != "parse_url" {
		t.Errorf("expected parse_url StoreError, got %v", err)
	}
}

func TestMerge(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	existing := &Snapshot{
		ID:            "s",
		CreatedAt:     t0,
		UpdatedAt:     t0,
		State:         StateIdle,
		ContextDomain: "LegalTech",
		ThoughtChain:  []ThoughtStep{{Thought: "a"}},
	}

	got := Merge(existing, &Snapshot{UpdatedAt: t1, State: StateBlocked, ViolationCount: 2})
	want := &Snapshot{
		ID:             "s",
		CreatedAt:      t0,
		UpdatedAt:      t1,
		State:          StateBlocked,
		ContextDomain:  "LegalTech",
		ViolationCount: 2,
		ThoughtChain:   []ThoughtStep{{Thought: "a"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge mismatch (-want +got):\n%s", diff)
	}

	fresh := Merge(nil, &Snapshot{ID: "n", UpdatedAt: t1, State: StateIdle})
	if !fresh.CreatedAt.Equal(t1) {
		t.Errorf("expected CreatedAt to default to UpdatedAt, got %v", fresh.CreatedAt)
	}
}
