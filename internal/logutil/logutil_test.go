package logutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, LevelTrace)

	logger.Log(context.Background(), LevelTrace, "tick")
	logger.Debug("tock")

	out := buf.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("trace record not labeled: %q", out)
	}
	if !strings.Contains(out, "level=DEBUG") {
		t.Errorf("debug record missing: %q", out)
	}
	if strings.Contains(out, "/") {
		t.Errorf("source path not trimmed: %q", out)
	}
}

func TestNewLoggerLevelGate(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Log(context.Background(), LevelTrace, "tick")
	if buf.Len() != 0 {
		t.Errorf("trace record leaked through info level: %q", buf.String())
	}
}
