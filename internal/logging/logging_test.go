package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestSimpleFormatter(t *testing.T) {
	f := &SimpleFormatter{}
	entry := &logrus.Entry{
		Time:    time.Date(2026, 3, 4, 5, 6, 7, 8000, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "inference failed",
		Data:    logrus.Fields{"frame": 12, "component": "pipeline"},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := "2026/03/04 05:06:07.000008 [WAR] inference failed component=pipeline frame=12\n"
	if string(out) != want {
		t.Errorf("Format() = %q, want %q", out, want)
	}
}

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{level: "debug", want: logrus.DebugLevel},
		{level: "warn", want: logrus.WarnLevel},
		{level: "", want: logrus.InfoLevel},
		{level: "loud", want: logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, err := New(Config{Level: tt.level}, &bytes.Buffer{})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if l.GetLevel() != tt.want {
				t.Errorf("level = %v, want %v", l.GetLevel(), tt.want)
			}
		})
	}
}

func TestNew_WritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	l, err := New(Config{Level: "info", Dir: dir}, &console)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	l.WithField("action", "goLeft").Info("action changed")
	l.Debug("hidden")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	for name, got := range map[string]string{"console": console.String(), "file": string(data)} {
		if !strings.Contains(got, "[INF] action changed action=goLeft") {
			t.Errorf("%s output missing entry: %q", name, got)
		}
		if strings.Contains(got, "hidden") {
			t.Errorf("%s output contains debug entry: %q", name, got)
		}
	}
}

func TestOrDiscard(t *testing.T) {
	if OrDiscard(nil) == nil {
		t.Fatal("OrDiscard(nil) returned nil")
	}

	l := logrus.New()
	if OrDiscard(l) != l {
		t.Error("OrDiscard should return the given logger")
	}
}
