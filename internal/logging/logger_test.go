package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestNewFormats(t *testing.T) {
	require.NotNil(t, New(slog.LevelInfo, "json"))
	require.NotNil(t, New(slog.LevelDebug, "text"))
	require.NotNil(t, New(slog.LevelInfo, "unknown"))
}

func TestWithComponent(t *testing.T) {
	log := Default().WithComponent("ingest")
	require.NotNil(t, log)
	assert.NotNil(t, log.Logger)
}
