package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()

	logger, err := New(dir, LevelDebug)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Info("session starting", "component", "dusk.clock")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	logPath := filepath.Join(dir, "reverie.log")
	f, err := os.Open(logPath)
	if err != nil {
		t.Fatalf("expected log file at %s: %v", logPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("log file is empty")
	}

	var entry map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["msg"] != "session starting" {
		t.Errorf("msg = %v, want %q", entry["msg"], "session starting")
	}
	if entry["component"] != "dusk.clock" {
		t.Errorf("component = %v, want %q", entry["component"], "dusk.clock")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := New(dir, LevelError)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	logger.Debug("dropped")
	logger.Info("dropped")
	logger.Warn("dropped")
	logger.Error("kept")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "reverie.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("expected exactly one JSON log line, got: %q", data)
	}
	if entry["msg"] != "kept" {
		t.Errorf("msg = %v, want %q", entry["msg"], "kept")
	}
}

func TestWithSession_PropagatesAttrs(t *testing.T) {
	dir := t.TempDir()

	logger, err := New(dir, LevelInfo)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	child := logger.WithSession("tok-123").WithComponent("dusk.clock")
	child.Info("attached")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "reverie.log"))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if entry["session_token"] != "tok-123" {
		t.Errorf("session_token = %v, want %q", entry["session_token"], "tok-123")
	}
	if entry["component"] != "dusk.clock" {
		t.Errorf("component = %v, want %q", entry["component"], "dusk.clock")
	}
}

func TestWith_IgnoresNonStringKeys(t *testing.T) {
	logger := Nop()
	child := logger.With(42, "value", "valid", "ok")
	if len(child.attrs) != 1 {
		t.Errorf("attrs length = %d, want 1", len(child.attrs))
	}
}

func TestNop_DoesNotPanic(t *testing.T) {
	logger := Nop()
	logger.Debug("a")
	logger.Info("b")
	logger.Warn("c")
	logger.Error("d")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"DEBUG", "DEBUG"},
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"error", "ERROR"},
		{"bogus", "INFO"},
		{"", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			want := parseLevel(tt.want)
			if got != want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, want)
			}
		})
	}
}
