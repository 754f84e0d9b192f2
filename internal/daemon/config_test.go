package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8090)
	}
	if cfg.Workflow.MembershipPolicy != "approval" {
		t.Errorf("Workflow.MembershipPolicy = %q, want approval", cfg.Workflow.MembershipPolicy)
	}
	if cfg.Admin.Secret != "" {
		t.Error("Admin.Secret should default to unset (admin view closed)")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestAPIConfigAddr(t *testing.T) {
	c := APIConfig{Host: "0.0.0.0", Port: 9000}
	if got := c.Addr(); got != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q, want 0.0.0.0:9000", got)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want default 8090", cfg.API.Port)
	}
}

func TestLoad_SaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := DefaultConfig()
	cfg.API.Port = 9999
	cfg.Workflow.MembershipPolicy = "direct"
	cfg.Mail.SiteURL = "https://pledge.example"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.API.Port != 9999 {
		t.Errorf("API.Port = %d, want 9999", got.API.Port)
	}
	if got.Workflow.MembershipPolicy != "direct" {
		t.Errorf("MembershipPolicy = %q, want direct", got.Workflow.MembershipPolicy)
	}
	if got.Mail.SiteURL != "https://pledge.example" {
		t.Errorf("SiteURL = %q, want https://pledge.example", got.Mail.SiteURL)
	}
}

func TestLoad_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("PLEDGED_ADMIN_SECRET", "hunter2")
	t.Setenv("SENDGRID_API_KEY", "sg-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Admin.Secret != "hunter2" {
		t.Errorf("Admin.Secret = %q, want env override", cfg.Admin.Secret)
	}
	if cfg.Mail.SendGridKey != "sg-key" {
		t.Errorf("Mail.SendGridKey = %q, want env override", cfg.Mail.SendGridKey)
	}
}

func TestHome_EnvOverride(t *testing.T) {
	t.Setenv("PLEDGED_HOME", "/tmp/pledged-test")
	if got := Home(); got != "/tmp/pledged-test" {
		t.Errorf("Home() = %q, want PLEDGED_HOME value", got)
	}
	if got := DefaultConfigPath(); got != "/tmp/pledged-test/config.toml" {
		t.Errorf("DefaultConfigPath() = %q", got)
	}
	os.Unsetenv("PLEDGED_HOME")
}
