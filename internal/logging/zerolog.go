package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewZerolog builds the console-format logger used by the storage managers.
// Records go to every writer given; the first is colored when it is a
// terminal stream and the rest are plain.
func NewZerolog(level string, writers ...io.Writer) zerolog.Logger {
	outs := make([]io.Writer, 0, len(writers))
	for i, w := range writers {
		if w == nil {
			continue
		}
		outs = append(outs, zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
			NoColor:    i > 0 || w != stdout,
		})
	}
	if len(outs) == 0 {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.MultiLevelWriter(outs...)).
		Level(zerologLevel(level)).
		With().Timestamp().Logger()
}

func zerologLevel(level string) zerolog.Level {
	switch strings.ToUpper(level) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ZerologAdapter lets a zerolog.Logger serve as a dispatcher.Logger.
type ZerologAdapter struct {
	logger zerolog.Logger
}

func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

func (l *ZerologAdapter) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *ZerologAdapter) Info(msg string, keysAndValues ...any) {
	l.logger.Info().Fields(toFields(keysAndValues)).Msg(msg)
}

func (l *ZerologAdapter) Error(msg string, keysAndValues ...any) {
	l.logger.Error().Fields(toFields(keysAndValues)).Msg(msg)
}

// toFields pairs up keys and values; a non-string key drops its pair and an
// odd trailing key is kept with a nil value.
func toFields(keysAndValues []any) map[string]any {
	fields := make(map[string]any, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keysAndValues) {
			v = keysAndValues[i+1]
		}
		if err, isErr := v.(error); isErr {
			v = err.Error()
		}
		fields[key] = v
	}
	return fields
}
