package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/sdejongh/sftpmirror/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullDocument = `
logging:
  level: DEBUG
  format: json
state_db: /var/lib/sftpmirror/state.db
defaults:
  retry_interval: 10s
  poll_interval: 500ms
targets:
  - name: web
    enabled: true
    local_path: ~/src/web
    remote_path: /srv/web/
    ssh_host: example.org
    ssh_user: deploy
    ssh_key_path: ~/.ssh/id_ed25519
    exclude_patterns: ["*.log", ".git"]
    source_code_only: true
    bandwidth_limit: 2M
    retry_interval: 45
    initial_sync:
      enabled: true
      delete: true
  - name: backup
    local_path: /data
    remote_path: /mnt/backup/data
    transport: local
`

func TestParseFullDocument(t *testing.T) {
	home, err := homedir.Dir()
	require.NoError(t, err)

	cfg, err := Parse([]byte(fullDocument))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/lib/sftpmirror/state.db", cfg.StateDB)
	assert.Equal(t, 10*time.Second, cfg.Defaults.RetryInterval.Std())
	assert.Equal(t, defaultConnectTimeout, cfg.Defaults.ConnectTimeout.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Defaults.PollInterval.Std())
	require.Len(t, cfg.Targets, 2)

	web := cfg.Targets[0]
	assert.True(t, web.Enabled)
	assert.Equal(t, filepath.Join(home, "src", "web"), web.LocalPath)
	assert.Equal(t, "/srv/web", web.RemotePath)
	assert.Equal(t, filepath.Join(home, ".ssh", "id_ed25519"), web.SSHKeyPath)
	assert.Equal(t, 22, web.SSHPort)
	assert.Equal(t, TransportSFTP, web.Transport)
	assert.Equal(t, InitialSyncConfig{Enabled: true, Delete: true}, web.InitialSync)

	bw, err := web.Bandwidth()
	require.NoError(t, err)
	assert.Equal(t, int64(2*1024*1024), bw)

	rules, err := web.Rules()
	require.NoError(t, err)
	assert.True(t, rules.SourceCodeOnly)

	timing := cfg.EffectiveTiming(&web)
	assert.Equal(t, 45*time.Second, timing.RetryInterval.Std())
	assert.Equal(t, 500*time.Millisecond, timing.PollInterval.Std())

	backup := cfg.Targets[1]
	assert.False(t, backup.Enabled)
	assert.Equal(t, TransportLocal, backup.Transport)

	assert.Len(t, cfg.EnabledTargets(), 1)
	_, err = cfg.Target("backup")
	assert.NoError(t, err)
	_, err = cfg.Target("nope")
	assert.Error(t, err)
}

func TestParseBareTargetList(t *testing.T) {
	doc := `[
  {
    "name": "site",
    "enabled": true,
    "local_path": "/home/dev/site",
    "remote_path": "/var/www/site",
    "ssh_host": "10.0.0.5",
    "ssh_user": "www",
    "ssh_key_path": "/home/dev/.ssh/id_rsa",
    "exclude_patterns": ["*.pyc"],
    "initial_sync": {"enabled": true, "delete": false}
  }
]`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "site", cfg.Targets[0].Name)
	assert.Equal(t, defaultRetryInterval, cfg.EffectiveTiming(&cfg.Targets[0]).RetryInterval.Std())
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseMalformed(t *testing.T) {
	_, err := Parse([]byte("targets: [unclosed"))
	assert.Error(t, err)

	_, err = Parse([]byte("defaults:\n  retry_interval: soon\n"))
	assert.Error(t, err)
}

func validTarget() TargetConfig {
	return TargetConfig{
		Name:       "web",
		LocalPath:  "/src",
		RemotePath: "/dst",
		Transport:  TransportSFTP,
		SSHHost:    "example.org",
		SSHPort:    22,
		SSHUser:    "deploy",
		SSHKeyPath: "/key",
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"valid", func(c *Config) {}, ""},
		{"password only", func(c *Config) { c.Targets[0].SSHKeyPath = ""; c.Targets[0].SSHPassword = "secret" }, ""},
		{"local transport", func(c *Config) { c.Targets[0] = TargetConfig{Name: "l", LocalPath: "/a", RemotePath: "/b", Transport: TransportLocal} }, ""},
		{"no targets", func(c *Config) { c.Targets = nil }, "targets"},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"missing name", func(c *Config) { c.Targets[0].Name = "" }, "targets[0].name"},
		{"missing local", func(c *Config) { c.Targets[0].LocalPath = "" }, "targets[0].local_path"},
		{"missing remote", func(c *Config) { c.Targets[0].RemotePath = "" }, "targets[0].remote_path"},
		{"missing host", func(c *Config) { c.Targets[0].SSHHost = "" }, "targets[0].ssh_host"},
		{"missing user", func(c *Config) { c.Targets[0].SSHUser = "" }, "targets[0].ssh_user"},
		{"no credentials", func(c *Config) { c.Targets[0].SSHKeyPath = "" }, "targets[0].ssh_key_path"},
		{"bad port", func(c *Config) { c.Targets[0].SSHPort = 70000 }, "targets[0].ssh_port"},
		{"bad transport", func(c *Config) { c.Targets[0].Transport = "ftp" }, "targets[0].transport"},
		{"bad bandwidth", func(c *Config) { c.Targets[0].BandwidthLimit = "fast" }, "targets[0].bandwidth_limit"},
		{"negative poll", func(c *Config) { c.Targets[0].PollInterval = Duration(-time.Second) }, "targets[0].poll_interval"},
		{"negative default", func(c *Config) { c.Defaults.RetryInterval = Duration(-time.Second) }, "defaults.retry_interval"},
		{"duplicate", func(c *Config) { c.Targets = append(c.Targets, validTarget()) }, "targets[1].name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Targets = []TargetConfig{validTarget()}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveToFile(Example(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 1)
	assert.Equal(t, "example", cfg.Targets[0].Name)
	assert.False(t, cfg.Targets[0].Enabled)
	assert.True(t, filepath.IsAbs(cfg.Targets[0].LocalPath))
	assert.Equal(t, defaultRetryInterval, cfg.Defaults.RetryInterval.Std())
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestDefaultConfigPath(t *testing.T) {
	path, err := DefaultConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", filepath.Base(path))
	assert.Equal(t, "sftpmirror", filepath.Base(filepath.Dir(path)))
}
