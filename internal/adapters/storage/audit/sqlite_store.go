package audit

import (
	"context"
	"database/sql"
	"time"

	"rewards/internal/adapters/storage"
	domain "rewards/internal/domain/audit"
)

const dateLayout = "2006-01-02T15:04:05.999999999Z07:00"

const eventColumns = `id, timestamp, category, action, severity, actor_id, actor_login, actor_role, profile_id, description, ip_address, user_agent`

// SQLiteStore implements the audit Store interface using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new audit event store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Save persists an audit event.
// PRE: event is valid
// POST: Event is persisted
func (s *SQLiteStore) Save(ctx context.Context, event domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_event (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp.UTC().Format(dateLayout), string(event.Category), string(event.Action),
		string(event.Severity), event.ActorID, event.ActorLogin, event.ActorRole,
		event.ProfileID, event.Description, event.IPAddress, event.UserAgent)
	return err
}

// List returns one page of matching events.
// PRE: limit > 0, offset >= 0
// POST: Returns events ordered by timestamp desc
func (s *SQLiteStore) List(ctx context.Context, filter Filter, limit, offset int) ([]domain.Event, error) {
	where, args := filter.where()
	query := `SELECT ` + eventColumns + ` FROM audit_event` + where + ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// Count returns how many events match the filter.
func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_event`+where, args...).Scan(&n)
	return n, err
}

func (f Filter) where() (string, []any) {
	clause := " WHERE 1=1"
	var args []any
	if f.Category != nil {
		clause += " AND category = ?"
		args = append(args, string(*f.Category))
	}
	if f.Action != nil {
		clause += " AND action = ?"
		args = append(args, string(*f.Action))
	}
	if f.ActorRole != nil {
		clause += " AND actor_role = ?"
		args = append(args, *f.ActorRole)
	}
	if f.ProfileID != nil {
		clause += " AND profile_id = ?"
		args = append(args, *f.ProfileID)
	}
	return clause, args
}

// scanEvents scans multiple rows into a slice of Events.
func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var timestamp string
		err := rows.Scan(&e.ID, &timestamp, &e.Category, &e.Action, &e.Severity, &e.ActorID, &e.ActorLogin, &e.ActorRole, &e.ProfileID, &e.Description, &e.IPAddress, &e.UserAgent)
		if err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(dateLayout, timestamp)
		events = append(events, e)
	}
	return events, rows.Err()
}
