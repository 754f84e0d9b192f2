// Package daemon owns the server configuration and lifecycle: loading the
// TOML config, wiring the store, workflow, mailer and HTTP server, and
// shutting everything down cleanly.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the full pledged configuration, stored as TOML.
type Config struct {
	API      APIConfig      `toml:"api"`
	Store    StoreConfig    `toml:"store"`
	Workflow WorkflowConfig `toml:"workflow"`
	Admin    AdminConfig    `toml:"admin"`
	Mail     MailConfig     `toml:"mail"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig controls the HTTP listener.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// StoreConfig controls the embedded database location.
type StoreConfig struct {
	Dir string `toml:"dir"`
}

// WorkflowConfig selects the membership policy for this deployment:
// "approval" (maker gate, member counted on approve) or "direct"
// (member counted on join).
type WorkflowConfig struct {
	MembershipPolicy string `toml:"membership_policy"`
}

// AdminConfig holds the shared secret for the admin view. Empty keeps the
// admin view closed. Overridable via PLEDGED_ADMIN_SECRET.
type AdminConfig struct {
	Secret string `toml:"secret"`
}

// MailConfig configures the SendGrid notification collaborator. An empty
// key disables delivery. The key is overridable via SENDGRID_API_KEY.
type MailConfig struct {
	SendGridKey string `toml:"sendgrid_key"`
	FromEmail   string `toml:"from_email"`
	SiteURL     string `toml:"site_url"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// LogConfig controls log verbosity: debug, info, warn or error.
type LogConfig struct {
	Level string `toml:"level"`
}

// Home returns the pledged home directory, PLEDGED_HOME or ~/.pledged.
func Home() string {
	if h := os.Getenv("PLEDGED_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pledged"
	}
	return filepath.Join(home, ".pledged")
}

// DefaultConfigPath is where `pledged init` writes and `pledged serve` reads.
func DefaultConfigPath() string {
	return filepath.Join(Home(), "config.toml")
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API:      APIConfig{Host: "127.0.0.1", Port: 8090},
		Store:    StoreConfig{Dir: filepath.Join(Home(), "data")},
		Workflow: WorkflowConfig{MembershipPolicy: "approval"},
		Mail: MailConfig{
			FromEmail: "noreply@trustpledge.io",
			SiteURL:   "https://trustpledge.io",
		},
		Metrics: MetricsConfig{Enabled: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the config file over the defaults. A missing file is not an
// error — defaults apply. Secrets can come from the environment instead of
// the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if v := os.Getenv("PLEDGED_ADMIN_SECRET"); v != "" {
		cfg.Admin.Secret = v
	}
	if v := os.Getenv("SENDGRID_API_KEY"); v != "" {
		cfg.Mail.SendGridKey = v
	}
	return cfg, nil
}

// Save writes the config as TOML, creating parent directories.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
