package role_test

import (
	"testing"

	"rewards/internal/domain/role"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    role.Role
		wantErr bool
	}{
		{name: "organization", input: "organization", want: role.Organization},
		{name: "business", input: "business", want: role.Business},
		{name: "staff", input: "staff", want: role.Staff},
		{name: "customer", input: "customer", want: role.Customer},
		{name: "legacy admin", input: "admin", want: role.Admin},
		{name: "mixed case and spaces", input: "  Staff ", want: role.Staff},
		{name: "empty", input: "", wantErr: true},
		{name: "unknown", input: "superuser", wantErr: true},
		{name: "alias is not a role", input: "org", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := role.Parse(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestLoginPath_DistinctPerRole(t *testing.T) {
	seen := make(map[string]role.Role)
	for _, r := range role.All {
		p := r.LoginPath()
		if p == "" {
			t.Fatalf("role %q has no login path", r)
		}
		if other, dup := seen[p]; dup {
			t.Errorf("roles %q and %q share login path %q", r, other, p)
		}
		seen[p] = r
	}
	if role.Role("bogus").LoginPath() != "" {
		t.Error("expected empty login path for invalid role")
	}
}

func TestDeprecated(t *testing.T) {
	for _, r := range role.All {
		if got := r.Deprecated(); got != (r == role.Admin) {
			t.Errorf("%q.Deprecated() = %v", r, got)
		}
	}
}

func TestInfer(t *testing.T) {
	tests := []struct {
		identifier string
		want       role.Role
		ok         bool
	}{
		{"5551234567", role.Customer, true},
		{" 1234567890 ", role.Customer, true},
		{"customer@demo.com", "", false},
		{"555-123-4567", "", false},
		{"+15551234567", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := role.Infer(tt.identifier)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Infer(%q) = (%q, %v), want (%q, %v)", tt.identifier, got, ok, tt.want, tt.ok)
		}
	}
}
