// Package app wires the ambient stack shared by every simbridge binary:
// configuration, the session log file, OpenTelemetry and the Graylog sink.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/OCAP2/simbridge/internal/config"
	"github.com/OCAP2/simbridge/internal/logging"
	intotel "github.com/OCAP2/simbridge/internal/otel"
)

// Build metadata, set with -ldflags.
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// Flags registers the options every binary accepts and binds them to
// their config keys. Flags only override the file when given.
func Flags(fs *pflag.FlagSet) *string {
	dir := fs.String("config", ".", "directory containing "+config.FileName)
	fs.String("log-level", "info", "DEBUG, INFO, WARN or ERROR")
	fs.String("logs-dir", "./simlogs", "directory for session log files")
	_ = viper.BindPFlag("logLevel", fs.Lookup("log-level"))
	_ = viper.BindPFlag("logsDir", fs.Lookup("logs-dir"))
	return dir
}

// Runtime is the ambient state of one process.
type Runtime struct {
	Name    string
	Started time.Time
	Logs    *logging.Manager
	OTel    *intotel.Provider

	logFile *os.File
}

// Start loads configuration from configDir and sets up logging. A missing
// config file is logged and defaults are used. ctx adds per-record
// attributes and may be nil.
func Start(name, configDir string, ctx logging.ContextProvider) *Runtime {
	rt := &Runtime{Name: name, Started: time.Now(), Logs: logging.NewManager()}

	rt.Logs.Setup(logging.Options{Level: viper.GetString("logLevel"), Name: name})
	logger := rt.Logs.Logger()

	if err := config.Load(configDir); err != nil {
		logger.Warn("Failed to load config, using defaults", "error", err)
	} else {
		logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	f, err := logging.OpenLogFile(config.GetString("logsDir"), name, rt.Started)
	if err != nil {
		logger.Error("Failed to open log file, logging to stdout", "error", err)
	} else {
		rt.logFile = f
	}

	rt.OTel, err = newOTel(config.GetOTelConfig(), name, rt.logFile)
	if err != nil {
		logger.Error("Failed to initialize OTel provider", "error", err)
		rt.OTel, _ = intotel.New(intotel.Config{})
	}

	gl, err := logging.NewGraylogWriter(config.GetGraylogConfig(), name)
	if err != nil {
		logger.Error("Failed to connect to Graylog", "error", err)
	}

	opts := logging.Options{
		Level:    config.GetString("logLevel"),
		Name:     name,
		Provider: rt.OTel.LoggerProvider(),
		Context:  ctx,
	}
	if rt.logFile != nil {
		opts.File = rt.logFile
	}
	if gl != nil {
		opts.Graylog = gl
	}
	rt.Logs.Setup(opts)

	rt.Logger().Info("Starting", "name", name, "version", Version, "build", BuildDate, "log", rt.LogPath())
	return rt
}

func newOTel(cfg config.OTelConfig, role string, logs *os.File) (*intotel.Provider, error) {
	c := intotel.Config{
		Enabled:      cfg.Enabled,
		ServiceName:  cfg.ServiceName,
		Role:         role,
		BatchTimeout: cfg.BatchTimeout,
		Endpoint:     cfg.Endpoint,
		Insecure:     cfg.Insecure,
	}
	if logs != nil {
		c.LogWriter = logs
	}
	p, err := intotel.New(c)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	return p, nil
}

func (rt *Runtime) Logger() *slog.Logger {
	return rt.Logs.Logger()
}

// LogWriter is the session log file, or nil when logging to stdout.
func (rt *Runtime) LogWriter() io.Writer {
	if rt.logFile == nil {
		return nil
	}
	return rt.logFile
}

// LogPath is the session log file, empty when logging to stdout.
func (rt *Runtime) LogPath() string {
	if rt.logFile == nil {
		return ""
	}
	return rt.logFile.Name()
}

// Close flushes and shuts down every sink.
func (rt *Runtime) Close(ctx context.Context) error {
	rt.Logger().Info("Shutting down", "uptime", time.Since(rt.Started).Round(time.Second).String())
	errs := []error{rt.Logs.Close(ctx), rt.OTel.Shutdown(ctx)}
	if rt.logFile != nil {
		errs = append(errs, rt.logFile.Close())
		rt.logFile = nil
	}
	return errors.Join(errs...)
}
