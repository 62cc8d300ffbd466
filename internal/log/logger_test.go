package log

import (
	"bytes"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestLogger_ComponentStamping(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Component: "worker",
		Handler:   slog.NewTextHandler(&buf, nil),
	})

	logger.Info("scan complete", "due", 3)

	out := buf.String()
	if !strings.Contains(out, "component=worker") {
		t.Errorf("output missing component attribute: %s", out)
	}
	if !strings.Contains(out, "due=3") {
		t.Errorf("output missing caller attribute: %s", out)
	}
}

func TestLevelFromEnv(t *testing.T) {
	original := os.Getenv("LOG_LEVEL")
	defer os.Setenv("LOG_LEVEL", original)

	tests := []struct {
		value string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		os.Setenv("LOG_LEVEL", tt.value)
		if got := LevelFromEnv(); got != tt.want {
			t.Errorf("LevelFromEnv() with %q = %v, want %v", tt.value, got, tt.want)
		}
	}
}
