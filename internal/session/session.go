// Package session holds per-user conversation state with TTL-based expiry
// and file persistence.
//
// The Store owns a synchronized map keyed by user ID and is injected into
// consumers; there is no ambient global. Each Session guards its own
// mutable state, so cross-user operations proceed in parallel while
// per-user mutations serialize.
//
// Expiry is lazy: nothing sweeps in the background. CleanupExpired is an
// explicit call that interested callers invoke themselves; ActiveCount and
// UserIDs are pure reads.
package session

import (
	"maps"
	"sync"
	"time"

	"github.com/docent-ai/docent/internal/prompt"
)

// State describes the session lifecycle stage.
type State string

// StateActive is the only state a live session carries; expired sessions
// are deleted, not archived.
const StateActive State = "active"

// Session is one user's conversation state.
//
// MessageCount counts user and assistant messages ever added. It is
// monotonic: clearing history does not reset it.
type Session struct {
	mu           sync.RWMutex
	userID       string
	createdAt    time.Time
	lastActivity time.Time
	history      []prompt.Message
	messageCount int
	metadata     map[string]string
	state        State
	now          func() time.Time
}

func newSession(userID string, now func() time.Time) *Session {
	t := now()
	return &Session{
		userID:       userID,
		createdAt:    t,
		lastActivity: t,
		metadata:     make(map[string]string),
		state:        StateActive,
		now:          now,
	}
}

// UserID returns the owning user's ID.
func (s *Session) UserID() string { return s.userID }

// CreatedAt returns the session creation time.
func (s *Session) CreatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.createdAt
}

// LastActivity returns the time of the most recent touch or mutation.
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// MessageCount returns the number of messages ever added.
func (s *Session) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.messageCount
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// AddMessage appends a message to the history, increments the message
// counter, and refreshes last activity.
func (s *Session) AddMessage(role prompt.Role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, prompt.Message{
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	})
	s.messageCount++
	s.lastActivity = s.now()
}

// History returns a copy of the last max messages, or all of them when
// max <= 0.
func (s *Session) History(max int) []prompt.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h := s.history
	if max > 0 && len(h) > max {
		h = h[len(h)-max:]
	}
	out := make([]prompt.Message, len(h))
	copy(out, h)
	return out
}

// HistoryLen returns the current history length (not the monotonic
// message counter).
func (s *Session) HistoryLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// ClearHistory removes all messages. MessageCount is unaffected.
func (s *Session) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// Metadata returns the value for key, if set.
func (s *Session) Metadata(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.metadata[key]
	return v, ok
}

// SetMetadata sets a metadata value.
func (s *Session) SetMetadata(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata[key] = value
}

// MetadataSnapshot returns a copy of all metadata.
func (s *Session) MetadataSnapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.metadata)
}

// Expired reports whether the session has been idle longer than timeout.
func (s *Session) Expired(timeout time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now().Sub(s.lastActivity) > timeout
}

// touch refreshes last activity.
func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
}
