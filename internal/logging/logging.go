// Package logging builds the process-wide logr.Logger used across
// qollective's transports, supervisor, and A2A subsystem. It wraps zap the
// way kagent's adk app wrapper does, with the env-driven level override
// kagent's CLI logger uses.
package logging

import (
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvLogLevel overrides the default log level (debug, info, warn, error).
const EnvLogLevel = "QOLLECTIVE_LOG_LEVEL"

// EnvDevelopment switches to a human-readable, color-coded encoder when set
// to any non-empty value.
const EnvDevelopment = "QOLLECTIVE_ENV"

var global logr.Logger

// New builds a logr.Logger backed by zap. Development controls the encoder;
// level, if non-empty, overrides the default info level.
func New(development bool, level string) logr.Logger {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.CallerKey = "caller"

	if level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(level)); err == nil {
			cfg.Level = zap.NewAtomicLevelAt(lvl)
		}
	}

	zapLogger, err := cfg.Build()
	if err != nil {
		devCfg := zap.NewDevelopmentConfig()
		zapLogger, _ = devCfg.Build()
	}
	return zapr.NewLogger(zapLogger)
}

// NewFromEnv builds a logger from QOLLECTIVE_ENV and QOLLECTIVE_LOG_LEVEL.
func NewFromEnv() logr.Logger {
	return New(os.Getenv(EnvDevelopment) != "", os.Getenv(EnvLogLevel))
}

// Init sets the package-global logger, used by components constructed
// without an explicit logr.Logger (e.g. default Config wiring).
func Init(l logr.Logger) {
	global = l
}

// Get returns the global logger, lazily initializing it from the
// environment if Init was never called.
func Get() logr.Logger {
	if global.GetSink() == nil {
		global = NewFromEnv()
	}
	return global
}

// Named returns a sub-logger scoped to component, matching the
// name-per-subsystem convention kagent uses for its a2a/mcp/transport
// loggers.
func Named(component string) logr.Logger {
	return Get().WithName(component)
}
