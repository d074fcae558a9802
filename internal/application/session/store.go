// Package session keeps the authentication state of one browser profile:
// bearer token, role and identity, persisted together and read together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"rewards/internal/domain/role"
	domain "rewards/internal/domain/session"
)

// Persisted keys. All three are written together and read together.
const (
	KeyToken = "access_token"
	KeyRole  = "role"
	KeyUser  = "current_user"
)

// Storage persists the named string values of one browser profile.
type Storage interface {
	Load(ctx context.Context, profileID string) (map[string]string, error)
	Replace(ctx context.Context, profileID string, values map[string]string) error
	Delete(ctx context.Context, profileID string) error
}

// ErrMissingProfile is returned when a store is bound to no profile.
var ErrMissingProfile = errors.New("session store has no profile")

// Store is the single source of truth for who is signed in on one profile.
// The zero value is not usable; construct with New.
type Store struct {
	storage   Storage
	profileID string

	mu      sync.RWMutex
	current domain.Session

	once  sync.Once
	ready chan struct{}
}

// New binds a store to a browser profile. Call Initialize before reading it.
func New(storage Storage, profileID string) *Store {
	return &Store{
		storage:   storage,
		profileID: profileID,
		ready:     make(chan struct{}),
	}
}

// ProfileID returns the browser profile this store is bound to.
func (s *Store) ProfileID() string {
	return s.profileID
}

// Initialize rehydrates the session from storage and marks the store ready.
// Missing, partial or corrupt data yields the empty session and is purged.
// PRE: none
// POST: IsReady() is true; Current() is either a complete session or empty
// INVARIANT: Only the first call has any effect
func (s *Store) Initialize(ctx context.Context) {
	s.once.Do(func() {
		defer close(s.ready)

		if s.profileID == "" {
			return
		}
		values, err := s.storage.Load(ctx, s.profileID)
		if err != nil {
			slog.Error("session_event", "event", "load_failed", "profile_id", s.profileID, "error", err)
			return
		}
		if len(values) == 0 {
			return
		}

		sess, err := decode(values)
		if err != nil {
			slog.Warn("session_event", "event", "discarded", "profile_id", s.profileID, "reason", err.Error())
			if err := s.storage.Delete(ctx, s.profileID); err != nil {
				slog.Error("session_event", "event", "purge_failed", "profile_id", s.profileID, "error", err)
			}
			return
		}

		s.mu.Lock()
		s.current = sess
		s.mu.Unlock()
	})
}

// Ready is closed once Initialize has settled.
func (s *Store) Ready() <-chan struct{} {
	return s.ready
}

// IsReady reports whether Initialize has settled.
func (s *Store) IsReady() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Save persists token, role and identity in one write and then updates the
// in-memory session. A failed write changes nothing.
// PRE: token is non-empty, r is valid, identity validates for r
// POST: Current() returns exactly the saved triple
func (s *Store) Save(ctx context.Context, token string, r role.Role, identity domain.Identity) error {
	if s.profileID == "" {
		return ErrMissingProfile
	}
	grant := domain.Grant{Token: token, Role: r, Identity: identity}
	if err := grant.Validate(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	user, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}

	values := map[string]string{
		KeyToken: token,
		KeyRole:  string(r),
		KeyUser:  string(user),
	}
	if err := s.storage.Replace(ctx, s.profileID, values); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.current = domain.Session{Token: token, Role: r, Identity: identity}
	s.mu.Unlock()
	return nil
}

// Clear removes every persisted value and resets the in-memory session.
// Safe to call when no session exists.
// POST: Current() is empty even if the storage delete failed
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = domain.Session{}
	s.mu.Unlock()

	if s.profileID == "" {
		return nil
	}
	if err := s.storage.Delete(ctx, s.profileID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the in-memory session, possibly empty. It never blocks.
func (s *Store) Current() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// decode turns the persisted values into a session, rejecting anything incomplete.
func decode(values map[string]string) (domain.Session, error) {
	token, hasToken := values[KeyToken]
	roleTag, hasRole := values[KeyRole]
	user, hasUser := values[KeyUser]
	if !hasToken || !hasRole || !hasUser || token == "" {
		return domain.Session{}, errors.New("partial session")
	}
	r, err := role.Parse(roleTag)
	if err != nil {
		return domain.Session{}, err
	}
	var identity domain.Identity
	if err := json.Unmarshal([]byte(user), &identity); err != nil {
		return domain.Session{}, fmt.Errorf("corrupt identity: %w", err)
	}
	if err := identity.Validate(r); err != nil {
		return domain.Session{}, err
	}
	return domain.Session{Token: token, Role: r, Identity: identity}, nil
}
