package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sdejongh/sftpmirror/internal/platform"
	"github.com/sdejongh/sftpmirror/pkg/filter"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/sdejongh/sftpmirror/pkg/ratelimit"
)

// Transport names
const (
	TransportSFTP  = "sftp"
	TransportLocal = "local"
)

const (
	defaultRetryInterval  = 30 * time.Second
	defaultConnectTimeout = 15 * time.Second
	defaultPollInterval   = time.Second
	defaultSSHPort        = 22
)

// Config represents the application configuration
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	StateDB  string         `yaml:"state_db"`
	Defaults Timing         `yaml:"defaults"`
	Targets  []TargetConfig `yaml:"targets"`
}

// LoggingConfig holds logging-related settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
	File   string `yaml:"file"`   // Log file path, empty for console only
}

// Timing holds the connection timings of a target
type Timing struct {
	RetryInterval  Duration `yaml:"retry_interval,omitempty"`
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`
	PollInterval   Duration `yaml:"poll_interval,omitempty"`
}

// InitialSyncConfig controls the reconciliation pass run on every connect
type InitialSyncConfig struct {
	Enabled bool `yaml:"enabled"`
	Delete  bool `yaml:"delete"`
}

// TargetConfig describes one mirrored directory
type TargetConfig struct {
	Name       string `yaml:"name"`
	Enabled    bool   `yaml:"enabled"`
	LocalPath  string `yaml:"local_path"`
	RemotePath string `yaml:"remote_path"`

	Transport   string `yaml:"transport,omitempty"`
	SSHHost     string `yaml:"ssh_host,omitempty"`
	SSHPort     int    `yaml:"ssh_port,omitempty"`
	SSHUser     string `yaml:"ssh_user,omitempty"`
	SSHKeyPath  string `yaml:"ssh_key_path,omitempty"`
	SSHPassword string `yaml:"ssh_password,omitempty"` // alone or to unlock the key
	KnownHosts  string `yaml:"known_hosts,omitempty"`

	ExcludePatterns []string          `yaml:"exclude_patterns"`
	SourceCodeOnly  bool              `yaml:"source_code_only"`
	Permissive      bool              `yaml:"permissive"`
	BandwidthLimit  string            `yaml:"bandwidth_limit,omitempty"`
	InitialSync     InitialSyncConfig `yaml:"initial_sync"`

	Timing `yaml:",inline"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Defaults: Timing{
			RetryInterval:  Duration(defaultRetryInterval),
			ConnectTimeout: Duration(defaultConnectTimeout),
			PollInterval:   Duration(defaultPollInterval),
		},
	}
}

// Example returns a configuration with one disabled sample target
func Example() *Config {
	cfg := Default()
	cfg.Targets = []TargetConfig{
		{
			Name:            "example",
			Enabled:         false,
			LocalPath:       "~/src/example",
			RemotePath:      "/srv/example",
			Transport:       TransportSFTP,
			SSHHost:         "example.org",
			SSHPort:         defaultSSHPort,
			SSHUser:         "deploy",
			SSHKeyPath:      "~/.ssh/id_ed25519",
			ExcludePatterns: []string{"*.log", "*.tmp", ".git", "node_modules", "__pycache__"},
			InitialSync:     InitialSyncConfig{Enabled: true},
		},
	}
	return cfg
}

// Normalize fills defaults and expands paths. It is applied by LoadFromFile
// before validation.
func (c *Config) Normalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	var err error
	if c.Logging.File, err = expandOptional(c.Logging.File); err != nil {
		return err
	}
	if c.StateDB, err = expandOptional(c.StateDB); err != nil {
		return err
	}

	for i := range c.Targets {
		if err := c.Targets[i].normalize(); err != nil {
			return fmt.Errorf("target %q: %w", c.Targets[i].Name, err)
		}
	}
	return nil
}

func (t *TargetConfig) normalize() error {
	if t.Transport == "" {
		t.Transport = TransportSFTP
	}
	t.Transport = strings.ToLower(t.Transport)
	if t.SSHPort == 0 {
		t.SSHPort = defaultSSHPort
	}

	var err error
	if t.LocalPath != "" {
		if t.LocalPath, err = platform.NormalizeLocal(t.LocalPath); err != nil {
			return err
		}
	}
	if t.RemotePath != "" {
		if t.Transport == TransportLocal {
			t.RemotePath, err = platform.NormalizeLocal(t.RemotePath)
		} else {
			t.RemotePath, err = platform.NormalizeRemote(t.RemotePath)
		}
		if err != nil {
			return err
		}
	}
	if t.SSHKeyPath, err = expandOptional(t.SSHKeyPath); err != nil {
		return err
	}
	if t.KnownHosts, err = expandOptional(t.KnownHosts); err != nil {
		return err
	}
	return nil
}

func expandOptional(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	return platform.ExpandPath(p)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return &models.ValidationError{
			Field:   "logging.level",
			Message: "must be 'debug', 'info', 'warn', or 'error'",
		}
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[c.Logging.Format] {
		return &models.ValidationError{
			Field:   "logging.format",
			Message: "must be 'json' or 'text'",
		}
	}

	if err := c.Defaults.validate("defaults"); err != nil {
		return err
	}

	if len(c.Targets) == 0 {
		return &models.ValidationError{
			Field:   "targets",
			Message: "at least one target is required",
		}
	}

	seen := make(map[string]bool)
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := t.Validate(fmt.Sprintf("targets[%d]", i)); err != nil {
			return err
		}
		if seen[t.Name] {
			return &models.ValidationError{
				Field:   fmt.Sprintf("targets[%d].name", i),
				Message: fmt.Sprintf("duplicate target name %q", t.Name),
			}
		}
		seen[t.Name] = true
	}

	return nil
}

// Validate checks one target; prefix names it in errors
func (t *TargetConfig) Validate(prefix string) error {
	field := func(name string) string { return prefix + "." + name }

	if t.Name == "" {
		return &models.ValidationError{Field: field("name"), Message: "is required"}
	}
	if t.LocalPath == "" {
		return &models.ValidationError{Field: field("local_path"), Message: "is required"}
	}
	if t.RemotePath == "" {
		return &models.ValidationError{Field: field("remote_path"), Message: "is required"}
	}

	switch t.Transport {
	case TransportSFTP:
		if t.SSHHost == "" {
			return &models.ValidationError{Field: field("ssh_host"), Message: "is required for sftp transport"}
		}
		if t.SSHUser == "" {
			return &models.ValidationError{Field: field("ssh_user"), Message: "is required for sftp transport"}
		}
		if t.SSHKeyPath == "" && t.SSHPassword == "" {
			return &models.ValidationError{Field: field("ssh_key_path"), Message: "a key or a password is required"}
		}
		if t.SSHPort < 1 || t.SSHPort > 65535 {
			return &models.ValidationError{Field: field("ssh_port"), Message: "must be between 1 and 65535"}
		}
	case TransportLocal:
	default:
		return &models.ValidationError{Field: field("transport"), Message: "must be 'sftp' or 'local'"}
	}

	if _, err := t.Rules(); err != nil {
		return &models.ValidationError{Field: field("exclude_patterns"), Message: err.Error()}
	}
	if _, err := ratelimit.ParseBandwidth(t.BandwidthLimit); err != nil {
		return &models.ValidationError{Field: field("bandwidth_limit"), Message: err.Error()}
	}

	return t.Timing.validate(prefix)
}

func (tm Timing) validate(prefix string) error {
	for name, d := range map[string]Duration{
		"retry_interval":  tm.RetryInterval,
		"connect_timeout": tm.ConnectTimeout,
		"poll_interval":   tm.PollInterval,
	} {
		if d < 0 {
			return &models.ValidationError{Field: prefix + "." + name, Message: "must not be negative"}
		}
	}
	return nil
}

// Rules compiles the exclusion rules of the target
func (t *TargetConfig) Rules() (*filter.RuleSet, error) {
	return filter.Compile(t.ExcludePatterns, t.SourceCodeOnly)
}

// Bandwidth returns the upload limit in bytes per second, 0 for unlimited
func (t *TargetConfig) Bandwidth() (int64, error) {
	return ratelimit.ParseBandwidth(t.BandwidthLimit)
}

// EffectiveTiming merges the target timings over the defaults
func (c *Config) EffectiveTiming(t *TargetConfig) Timing {
	out := c.Defaults
	if t.RetryInterval > 0 {
		out.RetryInterval = t.RetryInterval
	}
	if t.ConnectTimeout > 0 {
		out.ConnectTimeout = t.ConnectTimeout
	}
	if t.PollInterval > 0 {
		out.PollInterval = t.PollInterval
	}
	return out
}

// EnabledTargets returns the targets marked enabled
func (c *Config) EnabledTargets() []TargetConfig {
	var out []TargetConfig
	for _, t := range c.Targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// Target returns the target named name, enabled or not
func (c *Config) Target(name string) (*TargetConfig, error) {
	for i := range c.Targets {
		if c.Targets[i].Name == name {
			return &c.Targets[i], nil
		}
	}
	return nil, fmt.Errorf("unknown target %q", name)
}
