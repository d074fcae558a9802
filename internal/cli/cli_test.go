package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rewards/internal/config"
	"rewards/internal/logging"
)

// setupEnv points both databases at a temp dir and keeps bcrypt cheap.
func setupEnv(t *testing.T) (dir, envFile string) {
	t.Helper()
	dir = t.TempDir()
	t.Setenv("REWARDS_DB_PATH", filepath.Join(dir, "portal.db"))
	t.Setenv("REWARDS_API_DB_PATH", filepath.Join(dir, "api.db"))
	t.Setenv("REWARDS_BCRYPT_COST", "4")
	envFile = filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return dir, envFile
}

func run(t *testing.T, envFile string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand("test")
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--env-file", envFile))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrate_BothSchemas(t *testing.T) {
	_, envFile := setupEnv(t)

	out, err := run(t, envFile, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, want := range []string{"portal:", "api:", "at version 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	// A second run finds nothing to do.
	if _, err := run(t, envFile, "migrate"); err != nil {
		t.Errorf("second migrate: %v", err)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	_, envFile := setupEnv(t)

	out, err := run(t, envFile, "seed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out, "6 created, 0 already present, 6 total") {
		t.Errorf("first seed output = %q", out)
	}

	out, err = run(t, envFile, "seed")
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if !strings.Contains(out, "0 created, 6 already present, 6 total") {
		t.Errorf("second seed output = %q", out)
	}
}

func TestPrincipals_List(t *testing.T) {
	_, envFile := setupEnv(t)
	if _, err := run(t, envFile, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "all",
			args: nil,
			want: []string{"ID", "STATUS", "business@demo.com", "inactive", "6 shown, 6 principals in total"},
		},
		{
			name:    "by role",
			args:    []string{"--role", "business"},
			want:    []string{"business@demo.com", "1 shown, 6 principals in total"},
			notWant: []string{"staff@demo.com"},
		},
		{
			name: "paged",
			args: []string{"--limit", "2", "--offset", "5"},
			want: []string{"1 shown, 6 principals in total"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, envFile, append([]string{"principals"}, tt.args...)...)
			if err != nil {
				t.Fatalf("principals: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out, w) {
					t.Errorf("output should not contain %q:\n%s", w, out)
				}
			}
		})
	}
}

func TestPrincipals_RejectsBadFlags(t *testing.T) {
	_, envFile := setupEnv(t)
	for _, args := range [][]string{{"--role", "wizard"}, {"--limit", "0"}} {
		if _, err := run(t, envFile, append([]string{"principals"}, args...)...); err == nil {
			t.Errorf("principals %v should fail", args)
		}
	}
}

func TestSeed_MissingFile(t *testing.T) {
	dir, envFile := setupEnv(t)
	if _, err := run(t, envFile, "seed", "--file", filepath.Join(dir, "nope.yaml")); err == nil {
		t.Error("expected an error for a missing seed file")
	}
}

func TestInvalidConfigStopsCommand(t *testing.T) {
	_, envFile := setupEnv(t)
	t.Setenv("REWARDS_LOG_FORMAT", "xml")
	if _, err := run(t, envFile, "migrate"); err == nil {
		t.Error("expected config validation to fail the command")
	}
}

// TestPortalSignsInAgainstAPI assembles both servers the way the web and api
// commands do and signs a business user in through the portal.
func TestPortalSignsInAgainstAPI(t *testing.T) {
	_, envFile := setupEnv(t)
	cfg, err := config.Load(envFile)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	a := &app{cfg: cfg, version: "test", out: io.Discard, logger: logging.New(io.Discard, "error", "text", "test")}

	apiHandler, closeAPI, err := a.buildAPI(context.Background(), true)
	if err != nil {
		t.Fatalf("build api: %v", err)
	}
	t.Cleanup(func() { closeAPI() })
	api := httptest.NewServer(apiHandler)
	t.Cleanup(api.Close)

	a.cfg.BackendURL = api.URL
	p, err := a.buildPortal()
	if err != nil {
		t.Fatalf("build portal: %v", err)
	}
	t.Cleanup(func() { p.close() })
	portal := httptest.NewServer(p.handler)
	t.Cleanup(portal.Close)

	if err := p.backend.Ping(context.Background()); err != nil {
		t.Fatalf("portal cannot reach api: %v", err)
	}

	body := strings.NewReader(`{"identifier":"business@demo.com","password":"business-demo-123","role":"business"}`)
	resp, err := http.Post(portal.URL+"/", "application/json", body)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	var got struct {
		OK       bool   `json:"ok"`
		Redirect string `json:"redirect"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.OK || got.Redirect != "/business/dashboard" {
		t.Errorf("login = %+v, want ok with /business/dashboard", got)
	}

	rr := httptest.NewRecorder()
	p.metrics.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `rewards_login_attempts_total{outcome="success",role="business"} 1`) {
		t.Error("metrics listener does not report the portal login")
	}
}

func TestBuildPortal_TrustedProxies(t *testing.T) {
	tests := []struct {
		name    string
		proxies string
		wantErr bool
	}{
		{"none", "", false},
		{"cidr and address", "10.0.0.0/8,192.168.1.5", false},
		{"hostname", "proxy.internal", true},
		{"bad prefix", "10.0.0.0/33", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, envFile := setupEnv(t)
			t.Setenv("REWARDS_TRUSTED_PROXIES", tt.proxies)
			cfg, err := config.Load(envFile)
			if err != nil {
				t.Fatalf("config: %v", err)
			}
			a := &app{cfg: cfg, version: "test", out: io.Discard}
			p, err := a.buildPortal()
			if (err != nil) != tt.wantErr {
				t.Fatalf("buildPortal err = %v, wantErr %v", err, tt.wantErr)
			}
			if p != nil {
				p.close()
			}
		})
	}
}
