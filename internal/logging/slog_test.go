package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = orig })
	return &buf
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestSetup_FileOnly_NoStdout(t *testing.T) {
	out := captureStdout(t)

	var file bytes.Buffer
	m := NewManager()
	m.Setup(Options{Level: "info", File: &file})
	m.Logger().Info("hello file")

	assert.Contains(t, file.String(), "hello file")
	assert.Empty(t, out.String())
}

func TestSetup_NoFile_WritesToStdout(t *testing.T) {
	out := captureStdout(t)

	m := NewManager()
	m.Setup(Options{Level: "info"})
	m.Logger().Info("hello console")

	assert.Contains(t, out.String(), "hello console")
}

func TestSetup_Levels(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager()
	m.Setup(Options{Level: "info", File: &buf})

	m.Logger().Debug("should be filtered")
	m.Logger().Info("should appear")

	assert.NotContains(t, buf.String(), "should be filtered")
	assert.Contains(t, buf.String(), "should appear")

	buf.Reset()
	m.Setup(Options{Level: "debug", File: &buf})
	m.Logger().Debug("debug msg")
	assert.Contains(t, buf.String(), "debug msg")
}

func TestSetup_ReplacesLogger(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	m := NewManager()

	m.Setup(Options{File: &buf1})
	m.Logger().Info("first")
	m.Setup(Options{File: &buf2})
	m.Logger().Info("second")

	assert.Contains(t, buf1.String(), "first")
	assert.NotContains(t, buf1.String(), "second")
	assert.Contains(t, buf2.String(), "second")
}

func TestSetup_GraylogGetsJSON(t *testing.T) {
	var file bytes.Buffer
	gl := &closeRecorder{}

	m := NewManager()
	m.Setup(Options{File: &file, Graylog: gl})
	m.Logger().Info("to graylog", "entity", "lead")

	lines := strings.Split(strings.TrimSpace(gl.String()), "\n")
	require.Len(t, lines, 2)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &rec))
	assert.Equal(t, "to graylog", rec["msg"])
	assert.Equal(t, "lead", rec["entity"])

	require.NoError(t, m.Close(context.Background()))
	assert.True(t, gl.closed)
}

func TestSetup_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	step := 0
	m := NewManager()
	m.Setup(Options{File: &buf, Context: func() []slog.Attr {
		return []slog.Attr{slog.Int("step", step)}
	}})

	step = 42
	m.Logger().Info("stepped")
	assert.Contains(t, buf.String(), "step=42")
}

func TestSetup_WithOTelProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var buf bytes.Buffer
	m := NewManager()
	m.Setup(Options{File: &buf, Provider: provider, Name: "simbridge-test"})
	m.Logger().Info("otel integrated")

	assert.Contains(t, buf.String(), "otel integrated")
	assert.NoError(t, m.Flush(context.Background()))
}

func TestLogger_DefaultBeforeSetup(t *testing.T) {
	m := NewManager()
	assert.Equal(t, slog.Default(), m.Logger())
	assert.NoError(t, m.Flush(context.Background()))
	assert.NoError(t, m.Close(context.Background()))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"TRACE", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

type errorHandler struct{ slog.Handler }

func (h *errorHandler) Handle(context.Context, slog.Record) error { return errors.New("sink down") }
func (h *errorHandler) Enabled(context.Context, slog.Level) bool  { return true }

func TestMultiHandler(t *testing.T) {
	t.Run("fans out", func(t *testing.T) {
		var b1, b2 bytes.Buffer
		multi := NewMultiHandler(slog.NewTextHandler(&b1, nil), nil, slog.NewTextHandler(&b2, nil))
		require.Len(t, multi.handlers, 2)

		slog.New(multi).Info("fanned out")
		assert.Contains(t, b1.String(), "fanned out")
		assert.Contains(t, b2.String(), "fanned out")
	})

	t.Run("enabled if any is", func(t *testing.T) {
		info := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelInfo})
		debug := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelDebug})

		assert.False(t, NewMultiHandler(info).Enabled(context.Background(), slog.LevelDebug))
		assert.True(t, NewMultiHandler(info, debug).Enabled(context.Background(), slog.LevelDebug))
		assert.False(t, NewMultiHandler().Enabled(context.Background(), slog.LevelError))
	})

	t.Run("attrs and groups", func(t *testing.T) {
		var buf bytes.Buffer
		multi := NewMultiHandler(slog.NewTextHandler(&buf, nil))

		slog.New(multi.WithAttrs([]slog.Attr{slog.String("component", "backend")})).Info("a")
		slog.New(multi.WithGroup("grp")).Info("b", "key", "val")

		assert.Contains(t, buf.String(), "component=backend")
		assert.Contains(t, buf.String(), "grp.key=val")
		assert.Same(t, multi, multi.WithGroup(""))
	})

	t.Run("failing sink", func(t *testing.T) {
		var buf bytes.Buffer
		multi := NewMultiHandler(&errorHandler{}, slog.NewTextHandler(&buf, nil))

		rec := slog.NewRecord(time.Now(), slog.LevelInfo, "still delivered", 0)
		err := multi.Handle(context.Background(), rec)
		assert.EqualError(t, err, "sink down")
		assert.Contains(t, buf.String(), "still delivered")
	})
}

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), func() []slog.Attr {
		return []slog.Attr{slog.String("mission", "doublet")}
	})

	slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "runner")})).Info("tick")
	assert.Contains(t, buf.String(), "component=runner")
	assert.Contains(t, buf.String(), "mission=doublet")

	buf.Reset()
	slog.New(h.WithGroup("run")).Info("tock")
	assert.Contains(t, buf.String(), "run.mission=doublet")
	assert.Same(t, h, h.WithGroup(""))
}
