package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// stdout is swapped in tests.
var stdout io.Writer = os.Stdout

// Options selects the sinks a Manager writes to. Any nil sink is skipped.
type Options struct {
	Level string
	// Name tags OTel records and GELF messages.
	Name string
	// File receives plain text records. When nil, records go to stdout instead.
	File io.Writer
	// Graylog receives JSON records, one per write.
	Graylog io.Writer
	// Provider exports records through OpenTelemetry.
	Provider *sdklog.LoggerProvider
	// Context adds per-record attributes such as the running mission.
	Context ContextProvider
}

// Manager owns the process logger and the sinks behind it.
type Manager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
	closers     []io.Closer
}

// NewManager returns a Manager that logs through slog.Default until Setup.
func NewManager() *Manager {
	return &Manager{}
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG", "TRACE":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup replaces the logger with one writing to the sinks in opts.
func (m *Manager) Setup(opts Options) {
	lvl := parseLevel(opts.Level)
	m.logProvider = opts.Provider
	m.closers = m.closers[:0]

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stdout, handlerOpts))
	}
	if opts.Graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(opts.Graylog, handlerOpts))
		if c, ok := opts.Graylog.(io.Closer); ok {
			m.closers = append(m.closers, c)
		}
	}
	if opts.Provider != nil {
		name := opts.Name
		if name == "" {
			name = "simbridge"
		}
		handlers = append(handlers, otelslog.NewHandler(name, otelslog.WithLoggerProvider(opts.Provider)))
	}

	var h slog.Handler = NewMultiHandler(handlers...)
	if opts.Context != nil {
		h = NewContextHandler(h, opts.Context)
	}

	m.logger = slog.New(h)
	m.logger.Info("logging initialized", "level", lvl.String())
}

// Logger returns the configured logger, or slog.Default before Setup.
func (m *Manager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces pending OTel records out.
func (m *Manager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close flushes and then closes every sink the manager owns.
func (m *Manager) Close(ctx context.Context) error {
	errs := []error{m.Flush(ctx)}
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	m.closers = nil
	return errors.Join(errs...)
}
