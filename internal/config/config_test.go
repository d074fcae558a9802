package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// noEnvFile moves into an empty directory so the default ".env" is absent.
func noEnvFile(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	return ""
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.APIAddr != ":8000" {
		t.Errorf("addrs = %q/%q", cfg.Addr, cfg.APIAddr)
	}
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("BackendTimeout = %v, want 10s", cfg.BackendTimeout)
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 30m", cfg.AccessTokenTTL)
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.RateLimitPerSecond != 10 {
		t.Errorf("RateLimitPerSecond = %v, want 10", cfg.RateLimitPerSecond)
	}
	if len(cfg.TrustedOrigins) != 2 || cfg.TrustedOrigins[0] != "localhost:8080" {
		t.Errorf("TrustedOrigins = %v", cfg.TrustedOrigins)
	}
	if len(cfg.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies = %v, want none by default", cfg.TrustedProxies)
	}
	if cfg.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.Production() {
		t.Error("default environment should not be production")
	}
	for name, key := range map[string][]byte{"csrf": cfg.CSRFKey, "cookie": cfg.CookieKey, "jwt": cfg.JWTSecret} {
		if len(key) != 32 {
			t.Errorf("%s key has %d bytes, want a generated 32", name, len(key))
		}
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	key := strings.Repeat("ab", 32)
	t.Setenv("REWARDS_ADDR", ":9090")
	t.Setenv("REWARDS_BACKEND_URL", "http://api.internal:8000")
	t.Setenv("REWARDS_BACKEND_TIMEOUT", "3s")
	t.Setenv("REWARDS_BCRYPT_COST", "4")
	t.Setenv("REWARDS_CSRF_KEY", key)
	t.Setenv("REWARDS_LOG_FORMAT", "json")
	t.Setenv("REWARDS_TRUSTED_PROXIES", "10.0.0.0/8,192.168.1.5")
	t.Setenv("REWARDS_METRICS_ADDR", "")

	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.BackendURL != "http://api.internal:8000" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.BackendTimeout != 3*time.Second {
		t.Errorf("BackendTimeout = %v, want 3s", cfg.BackendTimeout)
	}
	if cfg.BcryptCost != 4 {
		t.Errorf("BcryptCost = %d, want 4", cfg.BcryptCost)
	}
	if cfg.CSRFKey[0] != 0xab {
		t.Errorf("CSRFKey was not decoded from the environment")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want json", cfg.LogFormat)
	}
	if len(cfg.TrustedProxies) != 2 || cfg.TrustedProxies[1] != "192.168.1.5" {
		t.Errorf("TrustedProxies = %v", cfg.TrustedProxies)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want disabled", cfg.MetricsAddr)
	}
}

func TestLoad_EnvFileErrors(t *testing.T) {
	dir := t.TempDir()
	unreadable := filepath.Join(dir, "subdir.env")
	if err := os.Mkdir(unreadable, 0o700); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"named file missing", filepath.Join(dir, "missing.env")},
		{"path is a directory", unreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(tt.path); err == nil {
				t.Errorf("Load(%q) should fail", tt.path)
			}
		})
	}
}

func TestLoad_DefaultEnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := Load(""); err != nil {
		t.Fatalf("absent .env should be ignored: %v", err)
	}

	if err := os.WriteFile(".env", []byte("REWARDS_ADDR=:5050\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":5050" {
		t.Errorf("Addr = %q, want the .env value", cfg.Addr)
	}
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "REWARDS_ADDR=:7070\nREWARDS_DB_PATH=/var/lib/rewards/portal.db\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":7070" || cfg.DBPath != "/var/lib/rewards/portal.db" {
		t.Errorf("file values not applied: addr %q db %q", cfg.Addr, cfg.DBPath)
	}

	t.Setenv("REWARDS_ADDR", ":6060")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":6060" {
		t.Errorf("env should override the file, got %q", cfg.Addr)
	}
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("REWARDS_ENV", EnvProduction)

	_, err := Load(noEnvFile(t))
	if err == nil || !strings.Contains(err.Error(), "REWARDS_CSRF_KEY") {
		t.Fatalf("err = %v, want missing REWARDS_CSRF_KEY", err)
	}

	key := strings.Repeat("01", 32)
	t.Setenv("REWARDS_CSRF_KEY", key)
	t.Setenv("REWARDS_COOKIE_KEY", key)
	t.Setenv("REWARDS_JWT_SECRET", key)
	cfg, err := Load(noEnvFile(t))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Production() {
		t.Error("expected production")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bcrypt cost too low", "REWARDS_BCRYPT_COST", "2"},
		{"short csrf key", "REWARDS_CSRF_KEY", "abcd"},
		{"non-hex cookie key", "REWARDS_COOKIE_KEY", strings.Repeat("zz", 32)},
		{"unknown log format", "REWARDS_LOG_FORMAT", "xml"},
		{"zero token ttl", "REWARDS_ACCESS_TOKEN_TTL", "0s"},
		{"zero rate limit", "REWARDS_RATE_LIMIT_PER_SECOND", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(noEnvFile(t)); err == nil {
				t.Errorf("%s=%q should be rejected", tt.key, tt.value)
			}
		})
	}
}
