package session

import (
	"context"
	"maps"
	"sync"
)

// MemoryStorage is an in-process Storage, used by tests and single-process tools.
type MemoryStorage struct {
	mu       sync.Mutex
	profiles map[string]map[string]string

	// Fail, when set, is returned by every write.
	Fail error
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{profiles: map[string]map[string]string{}}
}

// Load returns a copy of the profile's values.
func (m *MemoryStorage) Load(_ context.Context, profileID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	maps.Copy(out, m.profiles[profileID])
	return out, nil
}

// Replace swaps the profile's values.
func (m *MemoryStorage) Replace(_ context.Context, profileID string, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.profiles[profileID] = maps.Clone(values)
	return nil
}

// Delete drops the profile's values.
func (m *MemoryStorage) Delete(_ context.Context, profileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	delete(m.profiles, profileID)
	return nil
}

// Set writes raw values for a profile, bypassing validation.
func (m *MemoryStorage) Set(profileID string, values map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[profileID] = maps.Clone(values)
}

var _ Storage = (*MemoryStorage)(nil)
