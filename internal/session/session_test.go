package session

import (
	"testing"
	"time"

	"github.com/docent-ai/docent/internal/prompt"
)

// fakeClock is a manually advanced clock shared by store and session tests.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestSession_AddMessage(t *testing.T) {
	clock := newFakeClock()
	sess := newSession("u1", clock.Now)

	sess.AddMessage(prompt.RoleUser, "hello")
	clock.Advance(time.Minute)
	sess.AddMessage(prompt.RoleAssistant, "hi there")

	if got := sess.HistoryLen(); got != 2 {
		t.Errorf("HistoryLen() = %d, want 2", got)
	}
	if got := sess.MessageCount(); got != 2 {
		t.Errorf("MessageCount() = %d, want 2", got)
	}
	if got := sess.LastActivity(); !got.Equal(clock.Now()) {
		t.Errorf("LastActivity() = %v, want %v", got, clock.Now())
	}

	history := sess.History(0)
	if history[0].Role != prompt.RoleUser || history[0].Content != "hello" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if history[1].Role != prompt.RoleAssistant {
		t.Errorf("history[1].Role = %q", history[1].Role)
	}
}

func TestSession_History(t *testing.T) {
	clock := newFakeClock()
	sess := newSession("u1", clock.Now)
	for i := 0; i < 5; i++ {
		sess.AddMessage(prompt.RoleUser, string(rune('a'+i)))
	}

	t.Run("max bounds the tail", func(t *testing.T) {
		got := sess.History(2)
		if len(got) != 2 {
			t.Fatalf("got %d messages, want 2", len(got))
		}
		if got[0].Content != "d" || got[1].Content != "e" {
			t.Errorf("tail = %q, %q", got[0].Content, got[1].Content)
		}
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		got := sess.History(0)
		got[0].Content = "mutated"
		if sess.History(0)[0].Content == "mutated" {
			t.Error("History() exposed internal state")
		}
	})
}

func TestSession_ClearHistory(t *testing.T) {
	clock := newFakeClock()
	sess := newSession("u1", clock.Now)
	sess.AddMessage(prompt.RoleUser, "hello")
	sess.AddMessage(prompt.RoleAssistant, "hi")

	sess.ClearHistory()

	if got := sess.HistoryLen(); got != 0 {
		t.Errorf("HistoryLen() = %d, want 0", got)
	}
	// The lifetime counter is monotonic and survives clears.
	if got := sess.MessageCount(); got != 2 {
		t.Errorf("MessageCount() = %d, want 2", got)
	}
}

func TestSession_Expired(t *testing.T) {
	clock := newFakeClock()
	sess := newSession("u1", clock.Now)

	timeout := time.Hour

	clock.Advance(time.Hour)
	if sess.Expired(timeout) {
		t.Error("session exactly at the timeout must not be expired")
	}

	clock.Advance(time.Second)
	if !sess.Expired(timeout) {
		t.Error("session past the timeout must be expired")
	}

	sess.touch()
	if sess.Expired(timeout) {
		t.Error("touch must reset the idle clock")
	}
}

func TestSession_Metadata(t *testing.T) {
	clock := newFakeClock()
	sess := newSession("u1", clock.Now)

	sess.SetMetadata("lang", "en")

	if v, ok := sess.Metadata("lang"); !ok || v != "en" {
		t.Errorf("Metadata(lang) = %q, %v", v, ok)
	}
	if _, ok := sess.Metadata("missing"); ok {
		t.Error("unexpected metadata hit")
	}

	snap := sess.MetadataSnapshot()
	snap["lang"] = "de"
	if v, _ := sess.Metadata("lang"); v != "en" {
		t.Error("MetadataSnapshot() exposed internal state")
	}
}
