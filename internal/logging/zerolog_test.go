package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewZerolog_WritesPlainToFile(t *testing.T) {
	var console, file bytes.Buffer
	orig := stdout
	stdout = &console
	t.Cleanup(func() { stdout = orig })

	logger := NewZerolog("info", stdout, &file)
	logger.Debug().Msg("hidden")
	logger.Info().Str("bucket", "telemetry").Msg("connected")

	assert.Contains(t, file.String(), "connected")
	assert.Contains(t, file.String(), "bucket=telemetry")
	assert.NotContains(t, file.String(), "hidden")
	assert.NotContains(t, file.String(), "\x1b[", "file output has no colors")
	assert.Contains(t, console.String(), "connected")
}

func TestNewZerolog_NoWriters(t *testing.T) {
	logger := NewZerolog("debug", nil)
	assert.Equal(t, zerolog.Disabled, logger.GetLevel())
}

func TestZerologLevel(t *testing.T) {
	assert.Equal(t, zerolog.TraceLevel, zerologLevel("trace"))
	assert.Equal(t, zerolog.DebugLevel, zerologLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, zerologLevel("warn"))
	assert.Equal(t, zerolog.ErrorLevel, zerologLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, zerologLevel("bogus"))
}

func TestZerologAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := NewZerologAdapter(zerolog.New(&buf).Level(zerolog.DebugLevel))

	a.Debug("queued", "command", "ApplySnapshot", "depth", 3)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"command":"ApplySnapshot"`)
	assert.Contains(t, buf.String(), `"depth":3`)

	buf.Reset()
	a.Error("handler failed", "error", errors.New("boom"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)

	buf.Reset()
	a.Info("started")
	assert.Contains(t, buf.String(), `"message":"started"`)
}

func TestToFields(t *testing.T) {
	fields := toFields([]any{"a", 1, 2, "skipped", "tail"})
	assert.Equal(t, map[string]any{"a": 1, "tail": nil}, fields)
}
