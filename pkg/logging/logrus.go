package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
)

// Format represents the log output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// TargetField is rendered as a "[name]" prefix by the text formatter
const TargetField = "target"

// entryLogger adapts a logrus entry to Logger
type entryLogger struct {
	entry  *logrus.Entry
	closer io.Closer
}

func newEntryLogger(out io.Writer, level Level, format Format, closer io.Closer) *entryLogger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(toLogrus(level))
	l.SetFormatter(newFormatter(format))
	return &entryLogger{entry: logrus.NewEntry(l), closer: closer}
}

func (l *entryLogger) with(ctx context.Context, fields Fields) *logrus.Entry {
	e := l.entry
	if ctx != nil {
		e = e.WithContext(ctx)
	}
	if len(fields) > 0 {
		e = e.WithFields(logrus.Fields(fields))
	}
	return e
}

// Debug logs a debug message
func (l *entryLogger) Debug(ctx context.Context, msg string, fields Fields) {
	l.with(ctx, fields).Debug(msg)
}

// Info logs an info message
func (l *entryLogger) Info(ctx context.Context, msg string, fields Fields) {
	l.with(ctx, fields).Info(msg)
}

// Warn logs a warning message
func (l *entryLogger) Warn(ctx context.Context, msg string, fields Fields) {
	l.with(ctx, fields).Warn(msg)
}

// Error logs an error message
func (l *entryLogger) Error(ctx context.Context, msg string, err error, fields Fields) {
	e := l.with(ctx, fields)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}

// WithFields returns a logger with additional fields
func (l *entryLogger) WithFields(fields Fields) Logger {
	return &entryLogger{
		entry:  l.entry.WithFields(logrus.Fields(fields)),
		closer: l.closer,
	}
}

// Close closes the underlying output if the logger owns it
func (l *entryLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func newFormatter(format Format) logrus.Formatter {
	if format == FormatJSON {
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime: "timestamp",
				logrus.FieldKeyMsg:  "message",
			},
		}
	}
	return &textFormatter{timestampFormat: "2006-01-02T15:04:05.000Z"}
}

// textFormatter writes "timestamp [LEVEL] [target] message error=".." k=v"
type textFormatter struct {
	timestampFormat string
}

// Format implements logrus.Formatter
func (f *textFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	b.WriteString(e.Time.UTC().Format(f.timestampFormat))
	fmt.Fprintf(&b, " [%s]", levelString(fromLogrus(e.Level)))

	if target, ok := e.Data[TargetField]; ok {
		fmt.Fprintf(&b, " [%v]", target)
	}

	b.WriteByte(' ')
	b.WriteString(e.Message)

	if err, ok := e.Data[logrus.ErrorKey]; ok {
		fmt.Fprintf(&b, " error=%q", fmt.Sprint(err))
	}

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		if k == TargetField || k == logrus.ErrorKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// ConsoleLogger writes human readable lines to a terminal stream
type ConsoleLogger struct {
	*entryLogger
}

// NewConsoleLogger creates a console logger writing to out (stderr when nil)
func NewConsoleLogger(out io.Writer, level Level) *ConsoleLogger {
	if out == nil {
		out = os.Stderr
	}
	return &ConsoleLogger{entryLogger: newEntryLogger(out, level, FormatText, nil)}
}
