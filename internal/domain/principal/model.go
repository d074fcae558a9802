package principal

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rewards/internal/domain/role"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength = 254
	MaxPhoneLength = 20
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// Lockout policy
const (
	MaxFailedLogins = 5
	LockoutDuration = 15 * time.Minute
)

// Domain errors
var (
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrMissingLogin     = errors.New("an email or phone number is required")
	ErrInvalidPhone     = errors.New("phone must contain only digits")
	ErrCustomerPhone    = errors.New("only customers can sign in with a phone number")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrWrongPassword    = errors.New("incorrect password")
	ErrNegativePoints   = errors.New("points cannot be negative")
	ErrMissingBusiness  = errors.New("staff and customers must belong to a business")
)

// Principal is an account that can sign in to the rewards backend under one role.
// Organizations, businesses, staff, customers and legacy admins are all principals.
type Principal struct {
	ID             string
	Role           role.Role
	Email          string
	Phone          string
	Name           string
	PasswordHash   string
	OrganizationID string
	BusinessID     string
	Points         int
	Active         bool
	CreatedAt      time.Time
	FailedLogins   int
	LockedUntil    time.Time
}

// Validate checks if the Principal has valid data.
// PRE: Principal struct is populated
// POST: Returns nil if valid, error otherwise
func (p *Principal) Validate() error {
	if !p.Role.Valid() {
		return role.ErrUnknownRole
	}
	email := strings.TrimSpace(p.Email)
	if email == "" && p.Phone == "" {
		return ErrMissingLogin
	}
	if email != "" {
		if len(email) > MaxEmailLength {
			return errors.New("email cannot exceed 254 characters")
		}
		if !strings.Contains(email, "@") {
			return ErrInvalidEmail
		}
	}
	if p.Phone != "" {
		if len(p.Phone) > MaxPhoneLength || !role.IsPhoneNumber(p.Phone) {
			return ErrInvalidPhone
		}
		if p.Role != role.Customer {
			return ErrCustomerPhone
		}
	}
	if p.Points < 0 {
		return ErrNegativePoints
	}
	if (p.Role == role.Staff || p.Role == role.Customer) && p.BusinessID == "" {
		return ErrMissingBusiness
	}
	return nil
}

// SetPassword hashes and stores a password using bcrypt.
// PRE: plaintext is non-empty and >= MinPasswordLength characters
// POST: PasswordHash is set to bcrypt hash
func (p *Principal) SetPassword(plaintext string, cost int) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return err
	}
	p.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// PRE: PasswordHash is set
// INVARIANT: Principal fields are not mutated
func (p *Principal) CheckPassword(plaintext string) error {
	if p.PasswordHash == "" {
		return ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(plaintext)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// IsLocked returns true if the principal is currently locked out.
// INVARIANT: Principal fields are not mutated
func (p *Principal) IsLocked(now time.Time) bool {
	if p.LockedUntil.IsZero() {
		return false
	}
	return now.Before(p.LockedUntil)
}

// RecordFailedLogin increments the failed login counter and locks after MaxFailedLogins failures.
// PRE: Principal exists
// POST: FailedLogins incremented; LockedUntil set when the limit is reached.
// Returns true when this failure caused the lock.
func (p *Principal) RecordFailedLogin(now time.Time) bool {
	p.FailedLogins++
	if p.FailedLogins >= MaxFailedLogins && !p.IsLocked(now) {
		p.LockedUntil = now.Add(LockoutDuration)
		return true
	}
	return false
}

// ResetFailedLogins clears the failed login counter and lock.
// PRE: Principal exists
// POST: FailedLogins is 0, LockedUntil is zero
func (p *Principal) ResetFailedLogins() {
	p.FailedLogins = 0
	p.LockedUntil = time.Time{}
}

// CanSignIn reports whether the principal is allowed to authenticate at all.
// Deactivated staff keep their record but cannot log in.
func (p *Principal) CanSignIn() bool {
	return p.Active
}

// Scope is the set of tenant ids a principal acts within.
type Scope struct {
	AdminID        string
	OrganizationID string
	BusinessID     string
	StaffID        string
	CustomerID     string
}

// Scope derives the tenant ids of the principal from its role.
// A principal's own id fills the slot of its role.
// INVARIANT: Principal fields are not mutated
func (p *Principal) Scope() Scope {
	s := Scope{OrganizationID: p.OrganizationID, BusinessID: p.BusinessID}
	switch p.Role {
	case role.Admin:
		s.AdminID = p.ID
	case role.Organization:
		s.OrganizationID = p.ID
	case role.Business:
		s.BusinessID = p.ID
	case role.Staff:
		s.StaffID = p.ID
	case role.Customer:
		s.CustomerID = p.ID
	}
	return s
}
