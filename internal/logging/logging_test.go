package logging

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{2, zapcore.DebugLevel},
		{1, zapcore.DebugLevel},
		{0, zapcore.InfoLevel},
		{-1, zapcore.WarnLevel},
		{-2, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		if got := Level(tt.verbosity); got != tt.want {
			t.Errorf("Level(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, -1)
	logger.Info("hidden")
	logger.Warn("shown", zap.String("source", "crossref"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "crossref") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestNew(t *testing.T) {
	logger, err := New(0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug enabled at default verbosity")
	}
}
