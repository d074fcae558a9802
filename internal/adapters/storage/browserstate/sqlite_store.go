package browserstate

import (
	"context"
	"errors"
	"time"

	"rewards/internal/adapters/storage"
)

// ErrMissingProfile is returned when a write has no profile to address.
var ErrMissingProfile = errors.New("profile id is required")

// SQLiteStore implements Store using the browser_state table.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new browser state store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load returns every key stored for the profile.
// PRE: none
// POST: Returns a non-nil map
func (s *SQLiteStore) Load(ctx context.Context, profileID string) (map[string]string, error) {
	values := map[string]string{}
	if profileID == "" {
		return values, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM browser_state WHERE profile_id = ?", profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		values[k] = v
	}
	return values, rows.Err()
}

// Replace swaps the profile's state for values inside a single transaction.
// PRE: profileID is non-empty
// POST: Exactly the keys in values are stored for the profile
func (s *SQLiteStore) Replace(ctx context.Context, profileID string, values map[string]string) error {
	if profileID == "" {
		return ErrMissingProfile
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM browser_state WHERE profile_id = ?", profileID); err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for k, v := range values {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO browser_state (profile_id, key, value, updated_at) VALUES (?, ?, ?, ?)",
			profileID, k, v, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Delete removes every key stored for the profile.
func (s *SQLiteStore) Delete(ctx context.Context, profileID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM browser_state WHERE profile_id = ?", profileID)
	return err
}
