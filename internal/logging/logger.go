// Package logging builds the process logger. Diagnostics always go to
// stderr so report output on stdout stays clean for piping.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the logger for one invocation. Verbosity above zero enables
// debug output, which includes per-script eligibility and cache decisions.
func New(verbose int) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if verbose > 0 {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}
