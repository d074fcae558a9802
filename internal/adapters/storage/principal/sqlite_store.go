package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rewards/internal/adapters/storage"
	domain "rewards/internal/domain/principal"
	"rewards/internal/domain/role"
)

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"

const principalColumns = "id, role, email, phone, name, password_hash, organization_id, business_id, points, active, created_at, failed_logins, locked_until"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db storage.SQLDB
}

// NewSQLiteStore creates a new principal store.
func NewSQLiteStore(db storage.SQLDB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetByID retrieves a Principal by its ID.
// PRE: id is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByID(ctx context.Context, id string) (domain.Principal, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+principalColumns+" FROM principal WHERE id = ?", id)
	return getOne(row)
}

// GetByEmail retrieves the principal of the given role with that email.
// Emails are compared case-insensitively.
// PRE: email is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByEmail(ctx context.Context, r role.Role, email string) (domain.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+principalColumns+" FROM principal WHERE role = ? AND email = ?",
		string(r), normalizeEmail(email))
	return getOne(row)
}

// GetByPhone retrieves the principal of the given role with that phone number.
// PRE: phone is non-empty
// POST: Returns the entity or ErrNotFound
func (s *SQLiteStore) GetByPhone(ctx context.Context, r role.Role, phone string) (domain.Principal, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+principalColumns+" FROM principal WHERE role = ? AND phone = ?",
		string(r), strings.TrimSpace(phone))
	return getOne(row)
}

// Save persists a Principal to the database.
// PRE: entity has been validated
// POST: Entity is persisted (insert or update)
func (s *SQLiteStore) Save(ctx context.Context, entity domain.Principal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	updates := []string{
		"role=excluded.role",
		"email=excluded.email",
		"phone=excluded.phone",
		"name=excluded.name",
		"password_hash=excluded.password_hash",
		"organization_id=excluded.organization_id",
		"business_id=excluded.business_id",
		"points=excluded.points",
		"active=excluded.active",
		"failed_logins=excluded.failed_logins",
		"locked_until=excluded.locked_until",
	}
	query := fmt.Sprintf(
		"INSERT INTO principal (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO UPDATE SET %s",
		principalColumns,
		strings.Join(updates, ", "),
	)

	var lockedUntil any
	if !entity.LockedUntil.IsZero() {
		lockedUntil = entity.LockedUntil.UTC().Format(timeLayout)
	}
	createdAt := entity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = tx.ExecContext(ctx, query,
		entity.ID,
		string(entity.Role),
		nullable(normalizeEmail(entity.Email)),
		nullable(strings.TrimSpace(entity.Phone)),
		entity.Name,
		entity.PasswordHash,
		entity.OrganizationID,
		entity.BusinessID,
		entity.Points,
		entity.Active,
		createdAt.UTC().Format(timeLayout),
		entity.FailedLogins,
		lockedUntil,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// List retrieves principals based on the filter.
// PRE: filter.Limit > 0
// POST: Returns matching entities, oldest first
func (s *SQLiteStore) List(ctx context.Context, filter ListFilter) ([]domain.Principal, error) {
	var queryBuilder strings.Builder
	var args []any

	queryBuilder.WriteString("SELECT " + principalColumns + " FROM principal")
	if filter.Role != "" {
		queryBuilder.WriteString(" WHERE role = ?")
		args = append(args, string(filter.Role))
	}
	queryBuilder.WriteString(" ORDER BY created_at, id LIMIT ? OFFSET ?")
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Principal
	for rows.Next() {
		entity, err := scanPrincipal(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, entity)
	}
	return results, rows.Err()
}

// Count returns the total number of principals.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM principal").Scan(&count)
	return count, err
}

func getOne(row *sql.Row) (domain.Principal, error) {
	entity, err := scanPrincipal(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Principal{}, ErrNotFound
	}
	return entity, err
}

// scanPrincipal extracts a Principal from a row scanner function.
func scanPrincipal(scan func(dest ...any) error) (domain.Principal, error) {
	var entity domain.Principal
	var roleTag, createdAt string
	var email, phone, lockedUntil sql.NullString
	err := scan(
		&entity.ID,
		&roleTag,
		&email,
		&phone,
		&entity.Name,
		&entity.PasswordHash,
		&entity.OrganizationID,
		&entity.BusinessID,
		&entity.Points,
		&entity.Active,
		&createdAt,
		&entity.FailedLogins,
		&lockedUntil,
	)
	if err != nil {
		return domain.Principal{}, err
	}
	entity.Role = role.Role(roleTag)
	entity.Email = email.String
	entity.Phone = phone.String
	entity.CreatedAt, _ = parseTime(createdAt)
	if lockedUntil.Valid && lockedUntil.String != "" {
		entity.LockedUntil, _ = parseTime(lockedUntil.String)
	}
	return entity, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// nullable maps "" to NULL so the partial unique indexes ignore absent logins.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, f := range formats {
		t, err := time.Parse(f, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time: %s", s)
}
