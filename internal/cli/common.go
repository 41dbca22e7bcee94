package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/sdejongh/sftpmirror/pkg/config"
	"github.com/sdejongh/sftpmirror/pkg/journal"
	"github.com/sdejongh/sftpmirror/pkg/logging"
	"github.com/sdejongh/sftpmirror/pkg/ratelimit"
	"github.com/sdejongh/sftpmirror/pkg/reconcile"
	"github.com/sdejongh/sftpmirror/pkg/storage"
	"github.com/spf13/afero"
)

// ExitError carries a process exit code without an error message
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// configPath returns the --config value or the default location
func configPath() (string, error) {
	if globalFlags.ConfigFile != "" {
		return globalFlags.ConfigFile, nil
	}
	return config.DefaultConfigPath()
}

// loadConfig loads and validates the configuration file
func loadConfig() (*config.Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the config and the global flags.
// quiet limits the console to errors, the log file is unaffected.
func newLogger(cfg *config.Config, quiet bool) (logging.Logger, error) {
	level := cfg.Logging.Level
	if globalFlags.LogLevel != "" {
		level = globalFlags.LogLevel
	}
	if globalFlags.Verbose {
		level = "debug"
	}

	format := cfg.Logging.Format
	if globalFlags.LogFormat != "" {
		format = globalFlags.LogFormat
	}

	file := cfg.Logging.File
	if globalFlags.LogFile != "" {
		file = globalFlags.LogFile
	}

	logger, err := logging.New(logging.Options{
		Level:  logging.ParseLevel(level),
		Format: logging.Format(format),
		File:   file,
		Quiet:  quiet || globalFlags.Quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// openJournal opens the status journal; a journal that cannot be opened
// disables status recording rather than failing the command
func openJournal(cfg *config.Config) (*journal.Journal, error) {
	path := cfg.StateDB
	if path == "" {
		path = journal.DefaultPath()
	}
	return journal.Open(path)
}

// newDialer builds the transport of a target
func newDialer(cfg *config.Config, t *config.TargetConfig) (storage.Dialer, error) {
	bps, err := t.Bandwidth()
	if err != nil {
		return nil, err
	}
	limiter := ratelimit.NewLimiter(bps)
	local := afero.NewOsFs()

	switch t.Transport {
	case config.TransportLocal:
		return &storage.LocalDialer{Fs: local, Source: local, Limiter: limiter}, nil
	case config.TransportSFTP:
		return &storage.SFTPDialer{
			Config: storage.SFTPConfig{
				Host:       t.SSHHost,
				Port:       t.SSHPort,
				User:       t.SSHUser,
				KeyPath:    t.SSHKeyPath,
				Password:   t.SSHPassword,
				KnownHosts: t.KnownHosts,
				Timeout:    cfg.EffectiveTiming(t).ConnectTimeout.Std(),
			},
			Source:  local,
			Limiter: limiter,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", t.Transport)
	}
}

func rootsOf(t *config.TargetConfig) reconcile.Roots {
	return reconcile.Roots{Local: t.LocalPath, Remote: t.RemotePath}
}

// checkLocalRoot reports a missing or non-directory local root
func checkLocalRoot(t *config.TargetConfig) error {
	info, err := os.Stat(t.LocalPath)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local path does not exist: %s", t.LocalPath)
	}
	if err != nil {
		return fmt.Errorf("failed to access local path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("local path is not a directory: %s", t.LocalPath)
	}
	return nil
}
