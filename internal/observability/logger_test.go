package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json", Output: "stderr"})
	assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
}

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "console", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestWithRunContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithRunContext(base, "run-123", "tier2")
	logger.Info().Msg("started")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "run-123", entry["run_id"])
	assert.Equal(t, "tier2", entry["tier"])
}

func TestWithRecordContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithRecordContext(base, "12345678", "10.1/xyz")
	logger.Info().Msg("classified")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "12345678", entry["pmid"])
	assert.Equal(t, "10.1/xyz", entry["dedupe_key"])
}

func TestWithSourceContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := WithSourceContext(base, "pubmed", "esearch")
	logger.Debug().Msg("request")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "pubmed", entry["source"])
	assert.Equal(t, "esearch", entry["endpoint"])
}
