package app

import (
	"bytes"
	"strings"
	"testing"

	"tripcore/internal/config"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("trip_id", "t1").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"trip_id":"t1"`) {
		t.Errorf("missing field in %s", out)
	}
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(config.LogConfig{Level: "loud"}, &buf)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")

	out := buf.String()
	if strings.Contains(out, `"message":"debug"`) || !strings.Contains(out, `"message":"info"`) {
		t.Errorf("unexpected output %s", out)
	}
}

func TestSQLDriverName(t *testing.T) {
	tests := []struct {
		driver       string
		instrumented bool
		want         string
	}{
		{"postgres", false, "postgres"},
		{"postgres", true, "nrpostgres"},
		{"pgx", false, "pgx"},
		{"pgx", true, "pgx"},
	}
	for _, tt := range tests {
		if got := sqlDriverName(tt.driver, tt.instrumented); got != tt.want {
			t.Errorf("sqlDriverName(%q, %v) = %q, want %q", tt.driver, tt.instrumented, got, tt.want)
		}
	}
}
