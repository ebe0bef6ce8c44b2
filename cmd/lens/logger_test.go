package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/dogwifhat6/supplychain-lens/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupLoggerFormats(t *testing.T) {
	var buf bytes.Buffer

	// A buffer is never a terminal, so auto falls back to JSON.
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "auto"}, &buf)
	logger.Info("hello", "image_id", "img-1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("auto format did not produce JSON: %v (%s)", err, buf.String())
	}
	if rec["image_id"] != "img-1" {
		t.Errorf("record = %v", rec)
	}
	if ts, _ := rec["time"].(string); !strings.HasSuffix(ts, "Z") {
		t.Errorf("time = %q, want RFC3339 UTC", ts)
	}

	buf.Reset()
	logger = setupLogger(config.LoggingConfig{Level: "warn", Format: "text"}, &buf)
	logger.Info("dropped")
	logger.Warn("kept")
	if out := buf.String(); strings.Contains(out, "dropped") || !strings.Contains(out, "msg=kept") {
		t.Errorf("text output = %q", out)
	}
}
