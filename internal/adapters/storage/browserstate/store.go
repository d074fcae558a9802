// Package browserstate persists the key/value state each browser profile holds,
// the server-side equivalent of the browser's local storage.
package browserstate

import "context"

// Store loads and replaces the key/value state of one browser profile.
type Store interface {
	// Load returns every key stored for the profile. Missing profiles yield an empty map.
	Load(ctx context.Context, profileID string) (map[string]string, error)

	// Replace atomically swaps the profile's state for values.
	// PRE: profileID is non-empty
	// POST: Exactly the keys in values are stored for the profile
	Replace(ctx context.Context, profileID string, values map[string]string) error

	// Delete removes every key stored for the profile.
	Delete(ctx context.Context, profileID string) error
}

var _ Store = (*SQLiteStore)(nil)
