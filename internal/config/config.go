// Package config loads the outreach configuration from a YAML file with
// environment variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach tool.
type Config struct {
	SMTP   SMTPConfig   `yaml:"smtp"`
	IMAP   IMAPConfig   `yaml:"imap"`
	Policy PolicyConfig `yaml:"policy"`
	State  StateConfig  `yaml:"state"`
}

// SMTPConfig holds the outbound mail transport settings.
type SMTPConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	From           string `yaml:"from"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured SMTP timeout as a duration.
func (c SMTPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// IMAPConfig holds the reply-mailbox settings.
type IMAPConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	Folder          string `yaml:"folder"`
	TLS             bool   `yaml:"tls"`
	TimeoutSeconds  int    `yaml:"timeout_seconds"`
	SuppressBounces bool   `yaml:"suppress_bounces"`
}

// Timeout returns the configured IMAP timeout as a duration.
func (c IMAPConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PolicyConfig holds the compliance thresholds applied to every send.
type PolicyConfig struct {
	DailyLimit         int `yaml:"daily_limit"`
	PerDomainLimit     int `yaml:"per_domain_limit"`
	MinIntervalSeconds int `yaml:"min_interval_seconds"`
	PacingDelaySeconds int `yaml:"pacing_delay_seconds"`
}

// MinInterval returns the compliance minimum gap between sends.
func (c PolicyConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalSeconds) * time.Second
}

// PacingDelay returns the courtesy delay between live sends. This is a
// throughput-pacing delay, distinct from MinInterval which is policy.
func (c PolicyConfig) PacingDelay() time.Duration {
	return time.Duration(c.PacingDelaySeconds) * time.Second
}

// StateConfig holds the on-disk locations of all persisted state.
type StateConfig struct {
	Dir       string `yaml:"dir"`
	DryRunDir string `yaml:"dry_run_dir"`
}

// SuppressionPath returns the suppression set file location.
func (c StateConfig) SuppressionPath() string { return filepath.Join(c.Dir, "suppression.json") }

// RateLimitPath returns the rate-limit window file location.
func (c StateConfig) RateLimitPath() string { return filepath.Join(c.Dir, "rate_limit.json") }

// WatermarkPath returns the processed-message watermark file location.
func (c StateConfig) WatermarkPath() string { return filepath.Join(c.Dir, "watermark.json") }

// OutcomePath returns the append-only delivery outcome log location.
func (c StateConfig) OutcomePath() string { return filepath.Join(c.Dir, "outcomes.log") }

// AuditPath returns the append-only suppression audit log location.
func (c StateConfig) AuditPath() string { return filepath.Join(c.Dir, "audit.log") }

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Set defaults
	if cfg.SMTP.Port == 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.TimeoutSeconds == 0 {
		cfg.SMTP.TimeoutSeconds = 30
	}
	if cfg.IMAP.Port == 0 {
		cfg.IMAP.Port = 993
	}
	// 993 is the implicit-TLS port; STARTTLS never applies there.
	if cfg.IMAP.Port == 993 {
		cfg.IMAP.TLS = true
	}
	if cfg.IMAP.Folder == "" {
		cfg.IMAP.Folder = "INBOX"
	}
	if cfg.IMAP.TimeoutSeconds == 0 {
		cfg.IMAP.TimeoutSeconds = 60
	}
	if cfg.Policy.DailyLimit == 0 {
		cfg.Policy.DailyLimit = 150
	}
	if cfg.Policy.PerDomainLimit == 0 {
		cfg.Policy.PerDomainLimit = 30
	}
	if cfg.Policy.MinIntervalSeconds == 0 {
		cfg.Policy.MinIntervalSeconds = 45
	}
	if cfg.Policy.PacingDelaySeconds == 0 {
		cfg.Policy.PacingDelaySeconds = 60
	}
	if cfg.State.Dir == "" {
		cfg.State.Dir = "state"
	}
	if cfg.State.DryRunDir == "" {
		cfg.State.DryRunDir = filepath.Join(cfg.State.Dir, "dry_run")
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first, so credentials can live in
// .env locally and in real env vars on a server.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.SMTP.Password = v
	}
	if v := os.Getenv("SMTP_FROM"); v != "" {
		cfg.SMTP.From = v
	}
	if v := os.Getenv("IMAP_HOST"); v != "" {
		cfg.IMAP.Host = v
	}
	if v := os.Getenv("IMAP_USERNAME"); v != "" {
		cfg.IMAP.Username = v
	}
	if v := os.Getenv("IMAP_PASSWORD"); v != "" {
		cfg.IMAP.Password = v
	}
	if v := os.Getenv("OUTREACH_STATE_DIR"); v != "" {
		cfg.State.Dir = v
	}

	return cfg, nil
}

// ValidateSend checks the fields a campaign run cannot proceed without.
// Failures here are fatal and abort before any send.
func (c *Config) ValidateSend() error {
	if c.SMTP.Host == "" {
		return fmt.Errorf("smtp.host is required")
	}
	if c.SMTP.From == "" {
		return fmt.Errorf("smtp.from is required")
	}
	return nil
}

// ValidateInbox checks the fields a mailbox scan cannot proceed without.
func (c *Config) ValidateInbox() error {
	if c.IMAP.Host == "" {
		return fmt.Errorf("imap.host is required")
	}
	if c.IMAP.Username == "" {
		return fmt.Errorf("imap.username is required")
	}
	return nil
}
