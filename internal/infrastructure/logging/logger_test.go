package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/nerrad567/stimulus/internal/infrastructure/config"
)

func TestNew_TextIsDefault(t *testing.T) {
	for _, format := range []string{"", "text", "TEXT", "logfmt"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(&buf, config.LoggingConfig{Format: format}, "1.2.3")

			log.Info("message received", "topic", "dev/pcu/uuid/ab/in/sw/1")

			line := buf.String()
			for _, want := range []string{
				"level=INFO",
				`msg="message received"`,
				"service=stimulus",
				"version=1.2.3",
				"topic=dev/pcu/uuid/ab/in/sw/1",
			} {
				if !strings.Contains(line, want) {
					t.Errorf("text line %q missing %q", line, want)
				}
			}
		})
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.LoggingConfig{Format: "json"}, "1.2.3")

	log.Warn("invalid topic format", "topic", "dev/x")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	want := map[string]any{
		"level":   "WARN",
		"msg":     "invalid topic format",
		"service": ServiceName,
		"version": "1.2.3",
		"topic":   "dev/x",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s = %v, want %v", k, entry[k], v)
		}
	}
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.LoggingConfig{Level: "warn"}, "dev")

	log.Debug("message relayed")
	log.Info("message received")
	if buf.Len() != 0 {
		t.Errorf("debug and info written at warn level: %q", buf.String())
	}

	log.Warn("invalid topic format")
	if !strings.Contains(buf.String(), "invalid topic format") {
		t.Errorf("warn not written: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_Component(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.LoggingConfig{}, "dev")

	log.Component("relay").Info("relay started")
	log.Info("stimulus stopped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "component=relay") || !strings.Contains(lines[0], "service=stimulus") {
		t.Errorf("child line %q missing component or service", lines[0])
	}
	if strings.Contains(lines[1], "component=") {
		t.Errorf("parent line %q gained the child's component", lines[1])
	}
}

func TestLogger_BinaryPayloadIsEscaped(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, config.LoggingConfig{Format: "json"}, "dev")

	log.Info("message received", "payload", string([]byte{0x00, 0xff, '1'}))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("binary payload produced invalid JSON: %v (%s)", err, buf.String())
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() = nil")
	}
}
