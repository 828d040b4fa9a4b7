package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls how the service logger is built.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Format is json or console.
	Format      string
	Development bool
}

func DefaultConfig() Config {
	return Config{Level: "info", Format: "json"}
}

// New builds a zap logger from cfg. Unknown levels fall back to info.
func New(cfg Config) (*zap.Logger, error) {
	encoder := zap.NewProductionEncoderConfig()
	if cfg.Development {
		encoder = zap.NewDevelopmentEncoderConfig()
	}
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeDuration = zapcore.StringDurationEncoder

	format := cfg.Format
	if format != "console" {
		format = "json"
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(parseLevel(cfg.Level)),
		Development:       cfg.Development,
		DisableCaller:     !cfg.Development,
		DisableStacktrace: !cfg.Development,
		Encoding:          format,
		EncoderConfig:     encoder,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
	}
	return zc.Build()
}

// Nop returns a logger that discards everything. Handy in tests.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
