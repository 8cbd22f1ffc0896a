// Package observability provides structured logging and Prometheus metrics.
package observability

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/odds/internal/config"
)

// CLILogging is the logging configuration the odds CLI starts from. Table
// and roll output goes to stdout, so only warnings reach stderr unless the
// operator raises the level.
var CLILogging = config.LoggingConfig{Level: "warn", Format: "console"}

// SetCLIDefaults installs CLILogging as the logging defaults of v. A config
// file or ODDS_LOGGING_* variable still wins.
func SetCLIDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", CLILogging.Level)
	v.SetDefault("logging.format", CLILogging.Format)
}

// LoggerOption customizes NewLogger.
type LoggerOption func(*loggerOptions)

type loggerOptions struct {
	out    zapcore.WriteSyncer
	fields []zap.Field
}

// WithOutput sends log entries to ws instead of stderr.
func WithOutput(ws zapcore.WriteSyncer) LoggerOption {
	return func(o *loggerOptions) { o.out = ws }
}

// WithFields attaches fields to every entry, e.g. the component name.
func WithFields(fields ...zap.Field) LoggerOption {
	return func(o *loggerOptions) { o.fields = append(o.fields, fields...) }
}

// NewLogger creates a structured logger from the given logging configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, opts ...LoggerOption) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json":
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	o := loggerOptions{out: zapcore.Lock(os.Stderr)}
	for _, opt := range opts {
		opt(&o)
	}

	core := zapcore.NewCore(enc, o.out, zap.NewAtomicLevelAt(level))
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(o.out),
	).With(o.fields...), nil
}
