package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.Info().Str("attempt_id", "a1").Msg("Attempt started")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, ServiceName, line["service"])
	assert.Equal(t, "a1", line["attempt_id"])
	assert.Equal(t, "Attempt started", line["message"])
	assert.Contains(t, line, "caller")
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "WARN", "json")

	log.Info().Msg("dropped")
	log.Warn().Msg("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "verbose", "json")

	log.Debug().Msg("debug line")
	log.Info().Msg("info line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.Contains(t, out, "info line")
}

func TestNew_PrettyFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "pretty")

	log.Info().Msg("hello")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}
