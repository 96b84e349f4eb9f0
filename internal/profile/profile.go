// Package profile stores durable per-user profile records in a
// human-readable JSON file.
//
// The file grows append-only in content terms but is rewritten wholesale
// on every mutation, under an advisory lock with a temp-file rename. A
// corrupt or unreadable file logs a warning and starts empty rather than
// crashing startup.
package profile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Profile is one user's durable record.
type Profile struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	CreatedAt    time.Time         `json:"created_at"`
	LastActive   time.Time         `json:"last_active"`
	MessageCount int               `json:"message_count"`
	Preferences  map[string]string `json:"preferences"`
	Metadata     map[string]string `json:"metadata"`
}

// StoreConfig contains the parameters for a profile Store.
type StoreConfig struct {
	// Path is the JSON file backing the store. Required.
	Path string

	// Now overrides the clock, for tests. Default: time.Now.
	Now func() time.Time

	// Logger for persistence diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// Store maps user IDs to profiles. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*Profile
	path   string
	now    func() time.Time
	logger *slog.Logger
}

// NewStore creates a Store and loads any existing profiles from disk.
func NewStore(cfg StoreConfig) *Store {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Store{
		users:  make(map[string]*Profile),
		path:   cfg.Path,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	s.load()
	return s
}

func (s *Store) load() {
	if s.path == "" {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("profile file unreadable, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var users map[string]*Profile
	if err := json.Unmarshal(data, &users); err != nil {
		s.logger.Warn("profile file corrupt, starting empty", "path", s.path, "error", err)
		return
	}
	s.users = users
}

// save rewrites the backing file. Callers hold s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(s.users, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profiles: %w", err)
	}

	lock := flock.New(s.path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", s.path, err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
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
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// CreateOrUpdate creates the profile if absent, otherwise refreshes its
// name, last-active time, and metadata.
func (s *Store) CreateOrUpdate(userID, name string, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[userID]
	if !ok {
		p = &Profile{
			ID:          userID,
			Name:        name,
			CreatedAt:   s.now(),
			Preferences: make(map[string]string),
			Metadata:    make(map[string]string),
		}
		s.users[userID] = p
		s.logger.Debug("created profile", "user_id", userID)
	} else if name != "" {
		p.Name = name
	}

	p.LastActive = s.now()
	if metadata != nil {
		if p.Metadata == nil {
			p.Metadata = make(map[string]string)
		}
		maps.Copy(p.Metadata, metadata)
	}

	return s.save()
}

// IncrementMessageCount bumps the user's lifetime message counter. Unknown
// users are ignored.
func (s *Store) IncrementMessageCount(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[userID]
	if !ok {
		return nil
	}
	p.MessageCount++
	p.LastActive = s.now()
	return s.save()
}

// SetPreference stores a user preference. Unknown users are ignored.
func (s *Store) SetPreference(userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.users[userID]
	if !ok {
		return nil
	}
	if p.Preferences == nil {
		p.Preferences = make(map[string]string)
	}
	p.Preferences[key] = value
	return s.save()
}

// GetPreference returns the user's preference for key, or fallback.
func (s *Store) GetPreference(userID, key, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.users[userID]; ok {
		if v, ok := p.Preferences[key]; ok {
			return v
		}
	}
	return fallback
}

// Get returns a copy of the user's profile.
func (s *Store) Get(userID string) (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.users[userID]
	if !ok {
		return Profile{}, false
	}
	out := *p
	out.Preferences = maps.Clone(p.Preferences)
	out.Metadata = maps.Clone(p.Metadata)
	return out, true
}

// Count returns the number of known users.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
