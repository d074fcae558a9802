package principal

import (
	"context"
	"errors"

	domain "rewards/internal/domain/principal"
	"rewards/internal/domain/role"
)

// ErrNotFound is returned when no principal matches the lookup.
var ErrNotFound = errors.New("principal not found")

// Store persists Principal state.
type Store interface {
	GetByID(ctx context.Context, id string) (domain.Principal, error)
	GetByEmail(ctx context.Context, r role.Role, email string) (domain.Principal, error)
	GetByPhone(ctx context.Context, r role.Role, phone string) (domain.Principal, error)
	Save(ctx context.Context, value domain.Principal) error
	List(ctx context.Context, filter ListFilter) ([]domain.Principal, error)
	Count(ctx context.Context) (int, error)
}

// ListFilter carries filtering parameters for List operations.
type ListFilter struct {
	Limit  int
	Offset int
	Role   role.Role
}

var _ Store = (*SQLiteStore)(nil)
