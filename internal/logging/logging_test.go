package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew_ConsoleDefaultsToWarn(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Console: &buf})
	l.Info("quiet")
	l.Warn("loud")
	_ = l.Sync()

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Fatalf("expected info to be filtered, got %q", out)
	}
	if !strings.Contains(out, "loud") {
		t.Fatalf("expected warn line, got %q", out)
	}
}

func TestNew_FileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")
	l := New(Options{File: path})
	l.Info("catalog loaded")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"message":"catalog loaded"`) {
		t.Fatalf("expected json message, got %q", string(b))
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.WarnLevel},
		{"debug", zapcore.DebugLevel},
		{" ERROR ", zapcore.ErrorLevel},
		{"nonsense", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in, zapcore.WarnLevel); got != tt.want {
			t.Fatalf("parseLevel(%q): got %v want %v", tt.in, got, tt.want)
		}
	}
}
