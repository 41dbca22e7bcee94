package logging

import (
	"context"
	"errors"
)

// teeLogger fans every call out to several loggers
type teeLogger []Logger

// NewTee returns a logger writing to all non-nil loggers
func NewTee(loggers ...Logger) Logger {
	var t teeLogger
	for _, l := range loggers {
		if l != nil {
			t = append(t, l)
		}
	}
	if len(t) == 1 {
		return t[0]
	}
	return t
}

func (t teeLogger) Debug(ctx context.Context, msg string, fields Fields) {
	for _, l := range t {
		l.Debug(ctx, msg, fields)
	}
}

func (t teeLogger) Info(ctx context.Context, msg string, fields Fields) {
	for _, l := range t {
		l.Info(ctx, msg, fields)
	}
}

func (t teeLogger) Warn(ctx context.Context, msg string, fields Fields) {
	for _, l := range t {
		l.Warn(ctx, msg, fields)
	}
}

func (t teeLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	for _, l := range t {
		l.Error(ctx, msg, err, fields)
	}
}

func (t teeLogger) WithFields(fields Fields) Logger {
	out := make(teeLogger, len(t))
	for i, l := range t {
		out[i] = l.WithFields(fields)
	}
	return out
}

func (t teeLogger) Close() error {
	var errs []error
	for _, l := range t {
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
