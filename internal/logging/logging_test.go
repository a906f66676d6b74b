package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})
	logger.Info("engine started", slog.Int("startYear", 2025))

	out := buf.String()
	if !strings.Contains(out, `"msg":"engine started"`) {
		t.Fatalf("expected JSON message field, got: %s", out)
	}
	if !strings.Contains(out, `"startYear":2025`) {
		t.Fatalf("expected startYear attribute, got: %s", out)
	}
	if !strings.Contains(out, `"app":"kigalisim"`) {
		t.Fatalf("expected app attribute, got: %s", out)
	}
}

func TestNewTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatText, Output: &buf})
	logger.Info("year transitioned", slog.Int("year", 2026))

	out := buf.String()
	if !strings.Contains(out, "year transitioned") {
		t.Fatalf("expected text message, got: %s", out)
	}
	if !strings.Contains(out, "year=2026") {
		t.Fatalf("expected year attribute, got: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: FormatText, Output: &buf})
	logger.Info("should not appear")
	logger.Warn("should appear")

	out := buf.String()
	if strings.Contains(out, "should not appear") {
		t.Fatalf("info line should have been filtered out: %s", out)
	}
	if !strings.Contains(out, "should appear") {
		t.Fatalf("warn line should have been emitted: %s", out)
	}
}

func TestContextRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf})
	ctx := NewContext(context.Background(), base)

	ctx = WithRunID(ctx, "run-42")
	ctx = WithScenario(ctx, "BAU")

	FromContext(ctx).Info("running")

	if got := RunIDFromContext(ctx); got != "run-42" {
		t.Fatalf("expected run id run-42, got %q", got)
	}

	out := buf.String()
	if !strings.Contains(out, `"run_id":"run-42"`) {
		t.Fatalf("expected run_id attribute in output: %s", out)
	}
	if !strings.Contains(out, `"scenario":"BAU"`) {
		t.Fatalf("expected scenario attribute in output: %s", out)
	}
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("expected a non-nil fallback logger")
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("KIGALISIM_LOG_LEVEL", "debug")
	t.Setenv("KIGALISIM_LOG_FORMAT", "text")
	t.Setenv("KIGALISIM_LOG_SOURCE", "true")

	logger := NewFromEnv()
	if logger == nil {
		t.Fatal("expected a non-nil logger")
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug level to be enabled from env")
	}
}

func TestParseHelpers(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, c := range cases {
		if got := parseLogLevel(c.in); got != c.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if parseLogFormat("text") != FormatText {
		t.Error("expected text format")
	}
	if parseLogFormat("anything-else") != FormatJSON {
		t.Error("expected json default format")
	}

	if !parseBool("true") || !parseBool("1") || !parseBool("yes") {
		t.Error("expected truthy strings to parse as true")
	}
	if parseBool("false") || parseBool("") {
		t.Error("expected falsy strings to parse as false")
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	if logger == nil {
		t.Fatal("expected non-nil nop logger")
	}
	logger.Info("discarded")
}
