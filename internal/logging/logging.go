// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger output.
type Config struct {
	// Level is a zap level name; empty means info.
	Level string
	// Output is "stderr", "stdout", "nop" or a file path.
	Output string
	// Development switches to the console encoder with caller and stack traces.
	Development bool
}

// New builds a logger from cfg.
func New(cfg Config) (*zap.Logger, error) {
	output := strings.TrimSpace(cfg.Output)
	if output == "nop" {
		return zap.NewNop(), nil
	}
	if output == "" {
		output = "stderr"
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.OutputPaths = []string{output}
	zc.ErrorOutputPaths = []string{"stderr"}
	if level := strings.TrimSpace(cfg.Level); level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		zc.Level = parsed
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
