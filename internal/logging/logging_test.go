package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestSetupJSON(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(Config{Format: "json", Level: "warn", Output: &buf})
	Component("ingest").Info("dropped")
	Component("ingest").Warn("kept", "dataset_id", 7)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not json: %v", err)
	}
	if rec["component"] != "ingest" || rec["msg"] != "kept" || rec["dataset_id"] != float64(7) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestSetupText(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Setup(Config{Level: "debug", Output: &buf})
	Component("chart").Debug("stored", "mode", "combined")
	if !strings.Contains(buf.String(), "component=chart") || !strings.Contains(buf.String(), "mode=combined") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}

func TestCorrelationID(t *testing.T) {
	ctx := context.Background()
	if CorrelationID(ctx) != "" {
		t.Fatalf("expected empty id")
	}
	ctx2, id := EnsureCorrelationID(ctx)
	if len(id) != 36 || CorrelationID(ctx2) != id {
		t.Fatalf("expected uuid correlation id, got %q", id)
	}
	ctx3, again := EnsureCorrelationID(ctx2)
	if again != id || ctx3 != ctx2 {
		t.Fatalf("existing id must be kept")
	}
	if CorrelationID(WithCorrelationID(ctx, "abc")) != "abc" {
		t.Fatalf("explicit id lost")
	}
}
