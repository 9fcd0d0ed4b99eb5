package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// chdirTemp isolates Load from any config.yaml or .env in the package dir.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaultsWithToken(t *testing.T) {
	chdirTemp(t)
	t.Setenv("KODIK_TOKEN", "secret-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.HTTPAddr != ":8080" {
		t.Errorf("http addr = %q", cfg.Server.HTTPAddr)
	}
	if cfg.Kodik.Token != "secret-token" {
		t.Errorf("token = %q", cfg.Kodik.Token)
	}
	if cfg.Kodik.Timeout != 15*time.Second {
		t.Errorf("timeout = %v", cfg.Kodik.Timeout)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q", cfg.Database.Driver)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("KODIK_TOKEN", "tok")
	t.Setenv("KODIK_TIMEOUT", "3s")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("AUTH_REQUIRED", "true")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
	t.Setenv("GRPC_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kodik.Timeout != 3*time.Second {
		t.Errorf("timeout = %v", cfg.Kodik.Timeout)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors = %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Auth.Required {
		t.Error("auth.required not set")
	}
	if cfg.Server.GRPCAddr != ":9090" {
		t.Errorf("grpc addr = %q", cfg.Server.GRPCAddr)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "custom.yaml")
	body := "kodik:\n  token: from-file\nlog:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kodik.Token != "from-file" || cfg.Log.Level != "debug" {
		t.Errorf("file values not applied: %+v %+v", cfg.Kodik, cfg.Log)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing token", func(c *Config) { c.Kodik.Token = "" }, "kodik.token"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mongo" }, "database.driver"},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = "postgres" }, "database.dsn"},
		{"bad http addr", func(c *Config) { c.Server.HTTPAddr = "8080" }, "server.http_addr"},
		{"short secret with auth", func(c *Config) { c.Auth.Required = true; c.Auth.JWTSecret = "x" }, "jwt_secret"},
		{"ok", func(c *Config) {}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Kodik.Token = "tok"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSplitsCORSOrigins(t *testing.T) {
	chdirTemp(t)
	t.Setenv("KODIK_TOKEN", "tok")
	t.Setenv("CORS_ORIGINS", " https://a.example , https://b.example,,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"https://a.example", "https://b.example"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("cors = %q", cfg.Server.CORSOrigins)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("cors[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}
