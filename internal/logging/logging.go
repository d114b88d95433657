// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level maps the -v/-s verbosity counter to a zap level: 0 is info, each
// -v goes one step quieter towards debug, each -s one step louder towards
// error.
func Level(verbosity int) zapcore.Level {
	switch {
	case verbosity > 0:
		return zapcore.DebugLevel
	case verbosity == -1:
		return zapcore.WarnLevel
	case verbosity < -1:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New returns a console logger writing to stderr.
func New(verbosity int) (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(Level(verbosity))
	config.DisableStacktrace = verbosity <= 0
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// NewWriter returns a logger writing plain console lines to w.
func NewWriter(w io.Writer, verbosity int) *zap.Logger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), Level(verbosity))
	return zap.New(core)
}
