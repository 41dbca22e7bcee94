package logging

import (
	"io"
)

// Options selects the loggers built by New
type Options struct {
	Level  Level
	Format Format

	// File enables a rotating log file in addition to the console
	File string

	// Quiet limits console output to errors
	Quiet bool

	// Console overrides the console stream (stderr by default)
	Console io.Writer
}

// New builds the process logger: console output, plus a file when configured
func New(opts Options) (Logger, error) {
	consoleLevel := opts.Level
	if opts.Quiet {
		consoleLevel = ErrorLevel
	}
	console := NewConsoleLogger(opts.Console, consoleLevel)

	if opts.File == "" {
		return console, nil
	}

	file, err := NewFileLogger(FileLoggerConfig{
		Path:       opts.File,
		Format:     opts.Format,
		Level:      opts.Level,
		MaxSize:    10 * 1024 * 1024, // 10 MB
		MaxBackups: 5,
	})
	if err != nil {
		return nil, err
	}

	return NewTee(console, file), nil
}
