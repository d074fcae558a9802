package role

import (
	"errors"
	"strings"
)

// Role is the account type a session is authenticated as.
// Roles are independent tags; there is no ordering between them.
type Role string

// Role constants
const (
	Organization Role = "organization"
	Business     Role = "business"
	Staff        Role = "staff"
	Customer     Role = "customer"

	// Admin is the legacy super-role used by the original provisioning screens.
	// Superseded by Organization; kept until the role taxonomy is settled.
	Admin Role = "admin"
)

// All lists every valid role.
var All = []Role{Organization, Business, Staff, Customer, Admin}

// Domain errors
var (
	ErrUnknownRole = errors.New("role must be one of: organization, business, staff, customer, admin")
)

// Parse converts a role tag into a Role.
// PRE: none
// POST: Returns a valid Role or ErrUnknownRole
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", ErrUnknownRole
	}
	return r, nil
}

// Valid reports whether r is one of the enumerated roles.
// INVARIANT: r is not mutated
func (r Role) Valid() bool {
	switch r {
	case Organization, Business, Staff, Customer, Admin:
		return true
	}
	return false
}

// Deprecated reports whether the role is kept only for legacy screens.
func (r Role) Deprecated() bool {
	return r == Admin
}

// LoginPath returns the backend login endpoint for the role.
// Each role has its own endpoint; callers must never try another one on failure.
// PRE: r is valid
// POST: Returns the endpoint path, or "" for an invalid role
func (r Role) LoginPath() string {
	switch r {
	case Organization:
		return "/auth/login-org"
	case Business:
		return "/auth/login-business"
	case Staff:
		return "/auth/login-staff"
	case Customer:
		return "/auth/login-customer"
	case Admin:
		return "/auth/login-admin"
	}
	return ""
}

// String returns the role tag.
func (r Role) String() string {
	return string(r)
}

// Label returns the human-readable account type shown on the login form.
func (r Role) Label() string {
	switch r {
	case Organization:
		return "Organization"
	case Business:
		return "Business"
	case Staff:
		return "Business Staff"
	case Customer:
		return "Customer"
	case Admin:
		return "Admin"
	}
	return ""
}

// Infer picks a role from the shape of a login identifier.
// A purely numeric identifier is a phone number, which only customers log in with.
// PRE: none
// POST: Returns (Customer, true) for numeric identifiers, ("", false) otherwise
func Infer(identifier string) (Role, bool) {
	if IsPhoneNumber(identifier) {
		return Customer, true
	}
	return "", false
}

// IsPhoneNumber reports whether s consists only of ASCII digits.
func IsPhoneNumber(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
