package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestNewWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf}, "clinic-api")

	l.Debug().Msg("hidden")
	l.Info().Str("staff_id", "abc").Msg("slot query")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "slot query", entry["message"])
	assert.Equal(t, "clinic-api", entry["service"])
	assert.Equal(t, "abc", entry["staff_id"])
}
