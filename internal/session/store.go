package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/docent-ai/docent/internal/prompt"
)

// StoreConfig contains the parameters for a session Store.
type StoreConfig struct {
	// Timeout is the idle lifetime after which a session expires.
	// Default: 1 hour.
	Timeout time.Duration

	// Path is the persistence file. Empty disables persistence
	// (Save/Load become no-ops).
	Path string

	// Now overrides the clock, for tests. Default: time.Now.
	Now func() time.Time

	// Logger for persistence diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Store maps user IDs to sessions. Safe for concurrent use.
//
// Durable-storage writes rewrite the whole file under an advisory lock
// with a temp-file rename; single-writer operation across processes is
// still assumed.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	timeout  time.Duration
	path     string
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore creates a Store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		timeout:  cfg.Timeout,
		path:     cfg.Path,
		now:      cfg.Now,
		logger:   cfg.Logger,
	}
}

// GetOrCreate returns the user's session, refreshing its last activity.
// An expired session is deleted and replaced with a fresh one; an absent
// user gets a fresh session.
func (s *Store) GetOrCreate(userID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		if !sess.Expired(s.timeout) {
			sess.touch()
			return sess
		}
		s.logger.Info("session expired, creating fresh", "user_id", userID)
		delete(s.sessions, userID)
	}

	sess := newSession(userID, s.now)
	s.sessions[userID] = sess
	s.logger.Debug("created session", "user_id", userID)
	return sess
}

// Get returns the user's session without creating one. No expiry check is
// performed; callers reason about staleness themselves.
func (s *Store) Get(userID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[userID]
}

// Delete removes the user's session unconditionally.
func (s *Store) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

// CleanupExpired removes every session idle beyond the timeout and
// returns how many were removed. Eviction happens only here; reads never
// mutate.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for userID, sess := range s.sessions {
		if sess.Expired(s.timeout) {
			delete(s.sessions, userID)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("cleaned up expired sessions", "removed", removed)
	}
	return removed
}

// ActiveCount returns the number of sessions currently in the map. Pure
// read; call CleanupExpired first for an expiry-accurate count.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// UserIDs returns the IDs of all sessions currently in the map. Pure read.
func (s *Store) UserIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// persistedSession is the durable schema. Only conversation history and
// last activity survive a save/load cycle; created_at, message_count, and
// metadata are in-memory only. This reduced schema is the documented
// contract, not an accident; see the store tests.
type persistedSession struct {
	ConversationHistory []prompt.Message `json:"conversation_history"`
	LastActivity        time.Time        `json:"last_activity"`
}

// Save writes all sessions to the persistence file, replacing it
// wholesale. The write goes to a temp file in the same directory and is
// renamed into place under an advisory lock.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	out := make(map[string]persistedSession, len(s.sessions))
	for userID, sess := range s.sessions {
		out[userID] = persistedSession{
			ConversationHistory: sess.History(0),
			LastActivity:        sess.LastActivity(),
		}
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sessions: %w", err)
	}

	return writeFileAtomic(s.path, data)
}

// Load populates the store from the persistence file. A missing file is a
// clean start; a corrupt or unreadable file is logged and the store stays
// empty; silent data loss is the explicit tradeoff over crashing
// startup. Returns the number of sessions restored.
func (s *Store) Load() int {
	if s.path == "" {
		return 0
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("session file unreadable, starting empty", "path", s.path, "error", err)
		}
		return 0
	}

	var persisted map[string]persistedSession
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.logger.Warn("session file corrupt, starting empty", "path", s.path, "error", err)
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, p := range persisted {
		sess := newSession(userID, s.now)
		sess.history = p.ConversationHistory
		sess.lastActivity = p.LastActivity
		s.sessions[userID] = sess
	}

	s.logger.Info("restored sessions", "count", len(persisted), "path", s.path)
	return len(persisted)
}

// writeFileAtomic writes data to path via a same-directory temp file and
// rename, holding an advisory lock for the duration.
func writeFileAtomic(path string, data []byte) error {
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", path, err)
	}
	defer func() { _ = lock.Unlock() }()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
