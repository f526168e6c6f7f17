// Package logging configures the logrus logger shared by every component.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultTimestampFormat includes microseconds so per-frame lines can be
// told apart at camera frame rates.
const DefaultTimestampFormat = "2006/01/02 15:04:05.000000"

// LogFileName is the file written inside the log directory.
const LogFileName = "mudra.log"

// Config selects the level and an optional log directory.
type Config struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// DefaultConfig logs at info level to stdout only.
func DefaultConfig() Config {
	return Config{Level: "info"}
}

// New creates a logger writing to out and, when cfg.Dir is set, to a log
// file in that directory. An unknown level falls back to info.
func New(cfg Config, out io.Writer) (*logrus.Logger, error) {
	l := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetFormatter(&SimpleFormatter{TimestampFormat: DefaultTimestampFormat})

	if out == nil {
		out = os.Stdout
	}

	if cfg.Dir == "" {
		l.SetOutput(out)
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory %q: %w", cfg.Dir, err)
	}
	path := filepath.Join(cfg.Dir, LogFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file %q: %w", path, err)
	}
	l.SetOutput(io.MultiWriter(out, f))

	return l, nil
}

// Discard returns a logger that drops everything. Used where a component
// is built without a logger.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrDiscard returns log, or a discarding logger when log is nil.
func OrDiscard(log logrus.FieldLogger) logrus.FieldLogger {
	if log == nil {
		return Discard()
	}
	return log
}

// SimpleFormatter writes one line per entry:
//
//	2026/01/02 15:04:05.000000 [INF] message key=value
type SimpleFormatter struct {
	TimestampFormat string
}

// Format implements logrus.Formatter.
func (f *SimpleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	format := f.TimestampFormat
	if format == "" {
		format = DefaultTimestampFormat
	}
	b.WriteString(entry.Time.Format(format))

	level := strings.ToUpper(entry.Level.String())
	if len(level) > 3 {
		level = level[:3]
	}
	fmt.Fprintf(b, " [%s] %s", level, entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
		}
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}
