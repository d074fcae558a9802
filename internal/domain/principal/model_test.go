package principal_test

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rewards/internal/domain/principal"
	"rewards/internal/domain/role"
)

// TestPrincipal_Validate tests validation of Principal.
func TestPrincipal_Validate(t *testing.T) {
	tests := []struct {
		name      string
		principal principal.Principal
		wantErr   error
	}{
		{
			name:      "valid organization",
			principal: principal.Principal{ID: "1", Role: role.Organization, Email: "org@demo.com"},
		},
		{
			name:      "valid customer by phone",
			principal: principal.Principal{ID: "2", Role: role.Customer, Phone: "5551234567", BusinessID: "b1", Points: 450},
		},
		{
			name:      "unknown role",
			principal: principal.Principal{ID: "3", Role: "owner", Email: "x@demo.com"},
			wantErr:   role.ErrUnknownRole,
		},
		{
			name:      "no login identifier",
			principal: principal.Principal{ID: "4", Role: role.Business},
			wantErr:   principal.ErrMissingLogin,
		},
		{
			name:      "email without at",
			principal: principal.Principal{ID: "5", Role: role.Business, Email: "demo.com"},
			wantErr:   principal.ErrInvalidEmail,
		},
		{
			name:      "phone with dashes",
			principal: principal.Principal{ID: "6", Role: role.Customer, Phone: "555-1234", BusinessID: "b1"},
			wantErr:   principal.ErrInvalidPhone,
		},
		{
			name:      "phone on business",
			principal: principal.Principal{ID: "7", Role: role.Business, Phone: "5551234567"},
			wantErr:   principal.ErrCustomerPhone,
		},
		{
			name:      "negative points",
			principal: principal.Principal{ID: "8", Role: role.Customer, Phone: "5551234567", BusinessID: "b1", Points: -5},
			wantErr:   principal.ErrNegativePoints,
		},
		{
			name:      "staff without business",
			principal: principal.Principal{ID: "9", Role: role.Staff, Email: "staff@demo.com"},
			wantErr:   principal.ErrMissingBusiness,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.principal.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrincipal_Password(t *testing.T) {
	p := principal.Principal{ID: "1", Role: role.Business, Email: "business@demo.com"}

	if err := p.SetPassword("", bcrypt.MinCost); err != principal.ErrEmptyPassword {
		t.Errorf("expected ErrEmptyPassword, got %v", err)
	}
	if err := p.SetPassword("short", bcrypt.MinCost); err != principal.ErrPasswordTooShort {
		t.Errorf("expected ErrPasswordTooShort, got %v", err)
	}
	if err := p.SetPassword("business-demo-123", bcrypt.MinCost); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := p.CheckPassword("business-demo-123"); err != nil {
		t.Errorf("expected password to match: %v", err)
	}
	if err := p.CheckPassword("wrong-password"); err != principal.ErrWrongPassword {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}

	var empty principal.Principal
	if err := empty.CheckPassword("anything"); err != principal.ErrWrongPassword {
		t.Errorf("expected ErrWrongPassword for missing hash, got %v", err)
	}
}

func TestPrincipal_Lockout(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := principal.Principal{ID: "1", Role: role.Business, Email: "business@demo.com", Active: true}

	for i := 1; i < principal.MaxFailedLogins; i++ {
		if locked := p.RecordFailedLogin(now); locked {
			t.Fatalf("locked after %d failures", i)
		}
	}
	if p.IsLocked(now) {
		t.Fatal("should not be locked yet")
	}
	if locked := p.RecordFailedLogin(now); !locked {
		t.Fatal("expected lock on the final failure")
	}
	if !p.IsLocked(now.Add(time.Minute)) {
		t.Error("expected principal to be locked")
	}
	if p.IsLocked(now.Add(principal.LockoutDuration + time.Second)) {
		t.Error("lock should expire")
	}
	if locked := p.RecordFailedLogin(now.Add(time.Minute)); locked {
		t.Error("an already locked principal should not report a new lock")
	}

	p.ResetFailedLogins()
	if p.FailedLogins != 0 || !p.LockedUntil.IsZero() {
		t.Errorf("reset left state behind: %+v", p)
	}
}

func TestPrincipal_Scope(t *testing.T) {
	tests := []struct {
		p    principal.Principal
		want principal.Scope
	}{
		{principal.Principal{ID: "a1", Role: role.Admin}, principal.Scope{AdminID: "a1"}},
		{principal.Principal{ID: "o1", Role: role.Organization}, principal.Scope{OrganizationID: "o1"}},
		{principal.Principal{ID: "b1", Role: role.Business, OrganizationID: "o1"}, principal.Scope{OrganizationID: "o1", BusinessID: "b1"}},
		{principal.Principal{ID: "s1", Role: role.Staff, BusinessID: "b1"}, principal.Scope{BusinessID: "b1", StaffID: "s1"}},
		{principal.Principal{ID: "c1", Role: role.Customer, BusinessID: "b1"}, principal.Scope{BusinessID: "b1", CustomerID: "c1"}},
	}
	for _, tt := range tests {
		if got := tt.p.Scope(); got != tt.want {
			t.Errorf("%s Scope() = %+v, want %+v", tt.p.Role, got, tt.want)
		}
	}
}
