package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/docent-ai/docent/internal/log"
	"github.com/docent-ai/docent/internal/prompt"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T, clock *fakeClock, path string) *Store {
	t.Helper()
	return NewStore(StoreConfig{
		Timeout: time.Hour,
		Path:    path,
		Now:     clock.Now,
		Logger:  log.NewNop(),
	})
}

func TestStore_GetOrCreate(t *testing.T) {
	t.Run("returns the same session within the timeout", func(t *testing.T) {
		clock := newFakeClock()
		store := newTestStore(t, clock, "")

		first := store.GetOrCreate("u1")
		clock.Advance(30 * time.Minute)
		second := store.GetOrCreate("u1")

		if first != second {
			t.Error("expected the same session instance")
		}
		if got := store.ActiveCount(); got != 1 {
			t.Errorf("ActiveCount() = %d, want 1", got)
		}
	})

	t.Run("replaces an expired session with a fresh one", func(t *testing.T) {
		clock := newFakeClock()
		store := newTestStore(t, clock, "")

		first := store.GetOrCreate("u1")
		first.AddMessage(prompt.RoleUser, "hello")

		clock.Advance(time.Hour + time.Second)
		second := store.GetOrCreate("u1")

		if first == second {
			t.Fatal("expected a fresh session after expiry")
		}
		if got := second.HistoryLen(); got != 0 {
			t.Errorf("fresh session HistoryLen() = %d, want 0", got)
		}
	})

	t.Run("access refreshes last activity", func(t *testing.T) {
		clock := newFakeClock()
		store := newTestStore(t, clock, "")

		store.GetOrCreate("u1")
		clock.Advance(50 * time.Minute)
		store.GetOrCreate("u1")
		clock.Advance(50 * time.Minute)

		// 100 minutes since creation, but only 50 since the last access.
		sess := store.GetOrCreate("u1")
		if got := sess.HistoryLen(); got != 0 {
			t.Errorf("HistoryLen() = %d", got)
		}
		if store.ActiveCount() != 1 {
			t.Error("refreshed session must not be replaced")
		}
	})
}

func TestStore_Get(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, "")

	if store.Get("absent") != nil {
		t.Error("Get() of an absent user must be nil")
	}

	created := store.GetOrCreate("u1")

	// Get performs no expiry check: a stale session is still returned.
	clock.Advance(2 * time.Hour)
	if got := store.Get("u1"); got != created {
		t.Error("Get() must return the stored session without expiry checks")
	}
}

func TestStore_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, "")

	store.GetOrCreate("stale1")
	store.GetOrCreate("stale2")
	clock.Advance(50 * time.Minute)
	store.GetOrCreate("fresh")
	clock.Advance(30 * time.Minute)

	// Reads never evict.
	if got := store.ActiveCount(); got != 3 {
		t.Errorf("ActiveCount() before cleanup = %d, want 3", got)
	}

	if removed := store.CleanupExpired(); removed != 2 {
		t.Errorf("CleanupExpired() = %d, want 2", removed)
	}
	if got := store.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() after cleanup = %d, want 1", got)
	}
	if ids := store.UserIDs(); len(ids) != 1 || ids[0] != "fresh" {
		t.Errorf("UserIDs() = %v, want [fresh]", ids)
	}

	if removed := store.CleanupExpired(); removed != 0 {
		t.Errorf("second CleanupExpired() = %d, want 0", removed)
	}
}

func TestStore_Delete(t *testing.T) {
	clock := newFakeClock()
	store := newTestStore(t, clock, "")

	store.GetOrCreate("u1")
	store.Delete("u1")

	if store.Get("u1") != nil {
		t.Error("session survived Delete()")
	}
	store.Delete("never-existed")
}

func TestStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")

	clock := newFakeClock()
	store := newTestStore(t, clock, path)

	sess := store.GetOrCreate("u1")
	sess.AddMessage(prompt.RoleUser, "hello")
	sess.AddMessage(prompt.RoleAssistant, "hi there")
	savedActivity := sess.LastActivity()

	if err := store.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	restored := newTestStore(t, clock, path)
	if got := restored.Load(); got != 1 {
		t.Fatalf("Load() = %d, want 1", got)
	}

	got := restored.Get("u1")
	if got == nil {
		t.Fatal("restored session missing")
	}
	history := got.History(0)
	if len(history) != 2 {
		t.Fatalf("restored %d messages, want 2", len(history))
	}
	if history[0].Content != "hello" || history[1].Content != "hi there" {
		t.Error("history content not restored")
	}
	if !got.LastActivity().Equal(savedActivity) {
		t.Errorf("LastActivity() = %v, want %v", got.LastActivity(), savedActivity)
	}

	// Only history and last activity are durable. The message counter
	// restarts from zero after a reload; this is the persistence contract.
	if got.MessageCount() != 0 {
		t.Errorf("MessageCount() = %d, want 0 after reload", got.MessageCount())
	}
}

func TestStore_Load(t *testing.T) {
	t.Run("missing file is a clean start", func(t *testing.T) {
		clock := newFakeClock()
		store := newTestStore(t, clock, filepath.Join(t.TempDir(), "nope.json"))

		if got := store.Load(); got != 0 {
			t.Errorf("Load() = %d, want 0", got)
		}
	})

	t.Run("corrupt file starts empty", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "sessions.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}

		clock := newFakeClock()
		store := newTestStore(t, clock, path)

		if got := store.Load(); got != 0 {
			t.Errorf("Load() = %d, want 0", got)
		}
		if got := store.ActiveCount(); got != 0 {
			t.Errorf("ActiveCount() = %d, want 0", got)
		}
	})

	t.Run("empty path disables persistence", func(t *testing.T) {
		clock := newFakeClock()
		store := newTestStore(t, clock, "")

		store.GetOrCreate("u1")
		if err := store.Save(); err != nil {
			t.Errorf("Save() error = %v", err)
		}
		if got := store.Load(); got != 0 {
			t.Errorf("Load() = %d, want 0", got)
		}
	})
}
