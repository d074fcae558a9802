package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"rewards/internal/adapters/backend"
	"rewards/internal/domain/role"
	"rewards/internal/domain/session"
)

type captured struct {
	path   string
	body   map[string]string
	bearer string
}

func newServer(t *testing.T, status int, response any, got *captured) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			got.path = r.URL.Path
			got.bearer = r.Header.Get("Authorization")
			if r.Body != nil {
				json.NewDecoder(r.Body).Decode(&got.body)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(response)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAuthenticate_CustomerByPhone(t *testing.T) {
	var got captured
	points := 450
	srv := newServer(t, http.StatusOK, backend.Profile{
		AccessToken: "jwt", TokenType: "bearer", Role: "customer",
		CustomerID: "c1", BusinessID: "b1", Name: "Casey", Points: &points,
	}, &got)

	grant, err := backend.NewClient(srv.URL+"/", nil).Authenticate(context.Background(), role.Customer, " 5551234567 ", "secret-123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.path != "/auth/login-customer" {
		t.Errorf("path = %q", got.path)
	}
	if got.body["phone"] != "5551234567" || got.body["email"] != "" || got.body["password"] != "secret-123" {
		t.Errorf("body = %v", got.body)
	}
	if grant.Token != "jwt" || grant.Role != role.Customer {
		t.Errorf("grant = %+v", grant)
	}
	if grant.Identity.ID != "c1" || grant.Identity.CustomerID != "c1" || grant.Identity.Points != 450 {
		t.Errorf("identity = %+v", grant.Identity)
	}
}

func TestAuthenticate_EndpointPerRole(t *testing.T) {
	tests := []struct {
		role role.Role
		path string
		resp backend.Profile
		id   string
	}{
		{role.Organization, "/auth/login-org", backend.Profile{AccessToken: "t", OrgID: "o1"}, "o1"},
		{role.Business, "/auth/login-business", backend.Profile{AccessToken: "t", BusinessID: "b1", OrgID: "o1"}, "b1"},
		{role.Staff, "/auth/login-staff", backend.Profile{AccessToken: "t", StaffID: "s1", BusinessID: "b1"}, "s1"},
		{role.Admin, "/auth/login-admin", backend.Profile{AccessToken: "t", AdminID: "a1"}, "a1"},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			var got captured
			srv := newServer(t, http.StatusOK, tt.resp, &got)
			grant, err := backend.NewClient(srv.URL, nil).Authenticate(context.Background(), tt.role, "user@demo.com", "pw")
			if err != nil {
				t.Fatalf("Authenticate: %v", err)
			}
			if got.path != tt.path {
				t.Errorf("path = %q, want %q", got.path, tt.path)
			}
			if got.body["email"] != "user@demo.com" {
				t.Errorf("email not sent: %v", got.body)
			}
			if grant.Role != tt.role {
				t.Errorf("role = %q, want requested role when backend omits it", grant.Role)
			}
			if grant.Identity.ID != tt.id {
				t.Errorf("identity id = %q, want %q", grant.Identity.ID, tt.id)
			}
		})
	}
}

func TestAuthenticate_ReportsGrantedRole(t *testing.T) {
	srv := newServer(t, http.StatusOK, backend.Profile{AccessToken: "t", Role: "business", BusinessID: "b1"}, nil)
	grant, err := backend.NewClient(srv.URL, nil).Authenticate(context.Background(), role.Organization, "owner@demo.com", "pw")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if grant.Role != role.Business {
		t.Errorf("role = %q, want the backend's answer", grant.Role)
	}
}

func TestAuthenticate_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		detail string
	}{
		{"string detail", http.StatusUnauthorized, map[string]string{"detail": "Invalid credentials"}, "Invalid credentials"},
		{"no detail", http.StatusUnauthorized, map[string]string{}, ""},
		{"validation list", http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]string{{"msg": "field required"}, {"msg": "bad email"}}}, "field required; bad email"},
		{"locked", http.StatusLocked, map[string]string{"detail": "Account locked"}, "Account locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body, nil)
			_, err := backend.NewClient(srv.URL, nil).Authenticate(context.Background(), role.Business, "b@demo.com", "pw")
			var rejected *session.RejectedError
			if !errors.As(err, &rejected) {
				t.Fatalf("err = %v, want *RejectedError", err)
			}
			if rejected.Status != tt.status || rejected.Detail != tt.detail {
				t.Errorf("rejected = %+v", rejected)
			}
		})
	}
}

func TestAuthenticate_Unavailable(t *testing.T) {
	srv := newServer(t, http.StatusBadGateway, map[string]string{"detail": "upstream"}, nil)
	_, err := backend.NewClient(srv.URL, nil).Authenticate(context.Background(), role.Business, "b@demo.com", "pw")
	if !errors.Is(err, session.ErrBackendUnavailable) {
		t.Errorf("5xx err = %v, want ErrBackendUnavailable", err)
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()
	_, err = backend.NewClient(url, nil).Authenticate(context.Background(), role.Business, "b@demo.com", "pw")
	if !errors.Is(err, session.ErrBackendUnavailable) {
		t.Errorf("transport err = %v, want ErrBackendUnavailable", err)
	}
}

func TestAuthenticate_UnknownRole(t *testing.T) {
	_, err := backend.NewClient("http://127.0.0.1:1", nil).Authenticate(context.Background(), role.Role("owner"), "x", "y")
	if !errors.Is(err, role.ErrUnknownRole) {
		t.Errorf("err = %v, want ErrUnknownRole", err)
	}
}

func TestMe(t *testing.T) {
	var got captured
	points := 510
	srv := newServer(t, http.StatusOK, backend.Profile{Role: "customer", CustomerID: "c1", Points: &points}, &got)

	p, err := backend.NewClient(srv.URL, nil).Me(context.Background(), "jwt")
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if got.path != "/auth/me" || got.bearer != "Bearer jwt" {
		t.Errorf("request = %+v", got)
	}
	if id := p.Identity(role.Customer); id.Points != 510 || id.ID != "c1" {
		t.Errorf("identity = %+v", id)
	}
}

func TestMe_Unauthorized(t *testing.T) {
	srv := newServer(t, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"}, nil)
	_, err := backend.NewClient(srv.URL, nil).Me(context.Background(), "expired")
	if !errors.Is(err, session.ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}
