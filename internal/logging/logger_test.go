package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsComponentAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger = logger.With(String(FieldComponent, "fusion"))
	logger.Info("consensus built", Int(FieldTrack, 17), Int("weak_bits", 3))

	line := buf.String()
	if !strings.Contains(line, "[fusion]") {
		t.Fatalf("expected component tag in output, got %q", line)
	}
	if !strings.Contains(line, "consensus built") {
		t.Fatalf("expected message in output, got %q", line)
	}
	if !strings.Contains(line, "track=17") || !strings.Contains(line, "weak_bits=3") {
		t.Fatalf("expected attrs in output, got %q", line)
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("info record should have been suppressed: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn record missing: %q", out)
	}
}

func TestJSONHandlerLowercasesLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelInfo)
	logger := slog.New(newJSONHandler(&buf, lvl, false))

	logger.Error("sector failed", Int(FieldSector, 9))

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if decoded["level"] != "error" {
		t.Fatalf("unexpected level: %v", decoded["level"])
	}
	if decoded["msg"] != "sector failed" {
		t.Fatalf("unexpected msg: %v", decoded["msg"])
	}
	if decoded["sector"] != float64(9) {
		t.Fatalf("unexpected sector attr: %v", decoded["sector"])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
