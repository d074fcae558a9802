package loyaltyapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rewards/internal/adapters/backend"
	emailAdapter "rewards/internal/adapters/email"
	"rewards/internal/adapters/loyaltyapi"
	"rewards/internal/adapters/metrics"
	"rewards/internal/adapters/storage"
	principalStore "rewards/internal/adapters/storage/principal"
	"rewards/internal/application/orchestrators"
	"rewards/internal/domain/principal"
	"rewards/internal/domain/role"
	"rewards/internal/domain/session"
)

type apiEnv struct {
	srv     *httptest.Server
	store   *principalStore.SQLiteStore
	issuer  *loyaltyapi.Issuer
	notices *emailAdapter.NoopSender
}

func setupAPI(t *testing.T) apiEnv {
	t.Helper()
	db, err := storage.OpenAndMigrate(storage.MemoryPath, storage.APISchema)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := principalStore.NewSQLiteStore(db)
	if _, err := orchestrators.ExecuteSeedPrincipals(context.Background(),
		orchestrators.SeedPrincipalsInput{BcryptCost: bcrypt.MinCost},
		orchestrators.SeedPrincipalsDeps{Principals: store}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	issuer := loyaltyapi.NewIssuer([]byte("test-secret"), time.Minute)
	notices := emailAdapter.NewNoopSender()
	reg, m := metrics.NewRegistry()
	srv := httptest.NewServer(loyaltyapi.NewServer(loyaltyapi.Deps{
		Principals: store,
		Tokens:     issuer,
		Notices:    notices,
		Metrics:    m,
		Gatherer:   reg,
	}).Handler())
	t.Cleanup(srv.Close)
	return apiEnv{srv: srv, store: store, issuer: issuer, notices: notices}
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestLogin_EachRole(t *testing.T) {
	env := setupAPI(t)

	tests := []struct {
		path   string
		body   map[string]string
		role   string
		idKey  string
		idWant string
	}{
		{"/auth/login-org", map[string]string{"email": "org@demo.com", "password": "org-demo-123"}, "organization", "org_id", "org-demo"},
		{"/auth/login-business", map[string]string{"email": "business@demo.com", "password": "business-demo-123"}, "business", "business_id", "biz-demo"},
		{"/auth/login-staff", map[string]string{"email": "staff@demo.com", "password": "staff-demo-123"}, "staff", "staff_id", "staff-demo"},
		{"/auth/login-customer", map[string]string{"phone": "5551234567", "password": "customer-demo-123"}, "customer", "customer_id", "cust-demo"},
		{"/auth/login-admin", map[string]string{"email": "admin@demo.com", "password": "admin-demo-123"}, "admin", "admin_id", "admin-demo"},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			resp, out := postJSON(t, env.srv.URL+tt.path, tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d, body = %v", resp.StatusCode, out)
			}
			if out["role"] != tt.role || out[tt.idKey] != tt.idWant || out["token_type"] != "bearer" {
				t.Errorf("body = %v", out)
			}
			token, _ := out["access_token"].(string)
			claims, err := env.issuer.Parse(token)
			if err != nil {
				t.Fatalf("token does not parse: %v", err)
			}
			if string(claims.Role) != tt.role || claims.Subject != tt.idWant {
				t.Errorf("claims = %+v", claims)
			}
		})
	}
}

func TestLogin_Failures(t *testing.T) {
	env := setupAPI(t)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		detail string
	}{
		{"wrong password", "/auth/login-business", map[string]string{"email": "business@demo.com", "password": "wrong-password"}, http.StatusUnauthorized, "Invalid credentials"},
		{"wrong endpoint", "/auth/login-org", map[string]string{"email": "business@demo.com", "password": "business-demo-123"}, http.StatusUnauthorized, "Invalid credentials"},
		{"unknown user", "/auth/login-staff", map[string]string{"email": "nobody@demo.com", "password": "whatever-1"}, http.StatusUnauthorized, "Invalid credentials"},
		{"inactive staff", "/auth/login-staff", map[string]string{"email": "former@demo.com", "password": "staff-demo-123"}, http.StatusForbidden, "Account is inactive"},
		{"missing password", "/auth/login-customer", map[string]string{"phone": "5551234567"}, http.StatusBadRequest, "Invalid request body"},
		{"not json", "/auth/login-customer", "nope", http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := postJSON(t, env.srv.URL+tt.path, tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if out["detail"] != tt.detail {
				t.Errorf("detail = %v, want %q", out["detail"], tt.detail)
			}
		})
	}
}

func TestLogin_Lockout(t *testing.T) {
	env := setupAPI(t)
	url := env.srv.URL + "/auth/login-business"
	wrong := map[string]string{"email": "business@demo.com", "password": "wrong-password"}

	var last *http.Response
	for range principal.MaxFailedLogins {
		last, _ = postJSON(t, url, wrong)
	}
	if last.StatusCode != http.StatusLocked {
		t.Errorf("final status = %d, want 423", last.StatusCode)
	}

	resp, _ := postJSON(t, url, map[string]string{"email": "business@demo.com", "password": "business-demo-123"})
	if resp.StatusCode != http.StatusLocked {
		t.Errorf("correct password while locked: status = %d", resp.StatusCode)
	}
	if len(env.notices.Sent()) != 1 {
		t.Errorf("lockout notices = %d, want 1", len(env.notices.Sent()))
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupAPI(t)
	postJSON(t, env.srv.URL+"/auth/login-staff", map[string]string{"email": "staff@demo.com", "password": "staff-demo-123"})

	resp, err := http.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), `rewards_api_logins_total{outcome="success",role="staff"} 1`) {
		t.Errorf("login counter missing from /metrics:\n%s", body)
	}
}

func TestMe(t *testing.T) {
	env := setupAPI(t)
	_, out := postJSON(t, env.srv.URL+"/auth/login-customer", map[string]string{"phone": "5551234567", "password": "customer-demo-123"})
	token := out["access_token"].(string)

	// Points change after login and /auth/me reports the live value.
	p, _ := env.store.GetByID(context.Background(), "cust-demo")
	p.Points = 500
	env.store.Save(context.Background(), p)

	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /auth/me: %v", err)
	}
	defer resp.Body.Close()
	var me map[string]any
	json.NewDecoder(resp.Body).Decode(&me)
	if resp.StatusCode != http.StatusOK || me["points"] != float64(500) || me["access_token"] != nil {
		t.Errorf("status = %d, body = %v", resp.StatusCode, me)
	}
}

func TestMe_Unauthorized(t *testing.T) {
	env := setupAPI(t)
	other := loyaltyapi.NewIssuer([]byte("other-secret"), time.Minute)
	forged, _ := other.Issue(principal.Principal{ID: "cust-demo", Role: role.Customer, BusinessID: "biz-demo"})
	wrongRole, _ := env.issuer.Issue(principal.Principal{ID: "cust-demo", Role: role.Business})

	for name, header := range map[string]string{
		"missing":    "",
		"basic":      "Basic abc",
		"forged":     "Bearer " + forged,
		"wrong role": "Bearer " + wrongRole,
	} {
		t.Run(name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/auth/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("GET: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
			if resp.Header.Get("WWW-Authenticate") != "Bearer" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

// TestBackendClientAgainstAPI checks the portal's client and the API agree on the wire format.
func TestBackendClientAgainstAPI(t *testing.T) {
	env := setupAPI(t)
	client := backend.NewClient(env.srv.URL, env.srv.Client())
	ctx := context.Background()

	grant, err := client.Authenticate(ctx, role.Customer, "5551234567", "customer-demo-123")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := grant.Validate(); err != nil {
		t.Errorf("grant does not validate: %v (%+v)", err, grant)
	}
	if grant.Identity.CustomerID != "cust-demo" || grant.Identity.Points != 450 || grant.Identity.BusinessID != "biz-demo" {
		t.Errorf("identity = %+v", grant.Identity)
	}

	staff, err := client.Authenticate(ctx, role.Staff, "staff@demo.com", "staff-demo-123")
	if err != nil {
		t.Fatalf("Authenticate staff: %v", err)
	}
	if staff.Identity.ID != "staff-demo" || staff.Identity.StaffID != "staff-demo" || staff.Identity.BusinessID != "biz-demo" {
		t.Errorf("staff identity = %+v", staff.Identity)
	}

	_, err = client.Authenticate(ctx, role.Business, "business@demo.com", "wrong-password")
	var rejected *session.RejectedError
	if !errors.As(err, &rejected) || rejected.Detail != "Invalid credentials" {
		t.Errorf("err = %v, want rejection with detail", err)
	}

	profile, err := client.Me(ctx, grant.Token)
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if profile.Identity(role.Customer).ID != "cust-demo" {
		t.Errorf("profile = %+v", profile)
	}
	if _, err := client.Me(ctx, "garbage"); !errors.Is(err, session.ErrUnauthenticated) {
		t.Errorf("Me(garbage) err = %v", err)
	}
}
