package session

import (
	"errors"
	"fmt"

	"rewards/internal/domain/role"
)

// Domain errors
var (
	// ErrBackendUnavailable wraps transport failures and 5xx answers from the rewards backend.
	ErrBackendUnavailable = errors.New("rewards backend unavailable")
	// ErrUnauthenticated is returned when the backend rejects the bearer token (401).
	ErrUnauthenticated = errors.New("not authenticated")

	ErrMissingID         = errors.New("identity id is required")
	ErrMissingCustomerID = errors.New("customer identity requires a customer id")
	ErrNegativePoints    = errors.New("points cannot be negative")
	ErrEmptyToken        = errors.New("token cannot be empty")
)

// RejectedError is a 4xx answer from the backend, carrying its detail message.
type RejectedError struct {
	Status int
	Detail string
}

// Error implements error.
func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend rejected request (%d)", e.Status)
	}
	return fmt.Sprintf("backend rejected request (%d): %s", e.Status, e.Detail)
}

// Identity holds the role-specific profile fields returned at login.
type Identity struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	BusinessID     string `json:"business_id,omitempty"`
	StaffID        string `json:"staff_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
	Points         int    `json:"points,omitempty"`
}

// Validate checks the identity carries the fields its role depends on.
// PRE: r is valid
// POST: Returns nil if valid, error otherwise
func (i Identity) Validate(r role.Role) error {
	if i.ID == "" {
		return ErrMissingID
	}
	if r == role.Customer {
		if i.CustomerID == "" {
			return ErrMissingCustomerID
		}
		if i.Points < 0 {
			return ErrNegativePoints
		}
	}
	return nil
}

// DisplayName returns the best label for the identity.
func (i Identity) DisplayName() string {
	switch {
	case i.Name != "":
		return i.Name
	case i.Email != "":
		return i.Email
	case i.Phone != "":
		return i.Phone
	}
	return i.ID
}

// Session is the client-held authentication state: token, role and identity.
// The zero value is the empty (unauthenticated) session.
type Session struct {
	Token    string
	Role     role.Role
	Identity Identity
}

// Authenticated reports whether both the token and a valid role are present.
// INVARIANT: Session fields are not mutated
func (s Session) Authenticated() bool {
	return s.Token != "" && s.Role.Valid()
}

// Partial reports whether the session holds some state without being authenticated.
// Partial sessions are invalid and must be cleared.
func (s Session) Partial() bool {
	if s.Authenticated() {
		return false
	}
	return s.Token != "" || s.Role != "" || s.Identity != Identity{}
}

// Grant is what a successful backend login hands back.
type Grant struct {
	Token    string
	Role     role.Role
	Identity Identity
}

// Validate checks the grant is complete for its role.
// PRE: none
// POST: Returns nil if the grant can be turned into a session
func (g Grant) Validate() error {
	if g.Token == "" {
		return ErrEmptyToken
	}
	if !g.Role.Valid() {
		return role.ErrUnknownRole
	}
	return g.Identity.Validate(g.Role)
}
