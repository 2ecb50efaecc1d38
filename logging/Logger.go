// Package logging builds the zap loggers used throughout a run.
//
// Verbosity is given as an integer severity in the convention used by
// the configuration files and command line: 10 debug, 20 info,
// 30 warning, 40 error and 50 critical.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Integer severities
const (
	Debug    = 10
	Info     = 20
	Warning  = 30
	Error    = 40
	Critical = 50
)

// LevelFor converts an integer severity into a zap level. Severities
// between the named ones round up to the next named severity.
func LevelFor(severity int) zapcore.Level {
	switch {
	case severity <= Debug:
		return zapcore.DebugLevel
	case severity <= Info:
		return zapcore.InfoLevel
	case severity <= Warning:
		return zapcore.WarnLevel
	case severity <= Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.DPanicLevel
	}
}

// New returns a console logger writing to standard error at the given
// integer severity
func New(severity int) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(LevelFor(severity))
	cfg.Development = false
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("new: could not build logger: %w", err)
	}
	return logger, nil
}

// OrNop returns logger, or a no-op logger if logger is nil
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
