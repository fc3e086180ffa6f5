package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}

	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	log := New("info", "json", &buf).With("run_id", "r-1")
	log.Info("page fetched", "records", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}

	if entry["msg"] != "page fetched" || entry["run_id"] != "r-1" || entry["records"] != float64(3) {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestSetLevel_AppliesToChildren(t *testing.T) {
	var buf bytes.Buffer

	parent := New("info", "text", &buf)
	child := parent.With("component", "crawler")

	child.Debug("hidden")
	parent.SetLevel("debug")
	child.Debug("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug message logged before the level changed")
	}

	if !strings.Contains(out, "visible") || !strings.Contains(out, "component=crawler") {
		t.Errorf("expected child debug line, got %q", out)
	}
}
