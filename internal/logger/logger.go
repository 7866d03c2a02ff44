// Package logger holds the process-wide zap logger.
package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Log is a no-op logger until Init is called, so packages can log
// unconditionally in tests.
var Log = zap.NewNop()

// Init replaces the global logger with a production logger at the given
// level ("debug", "info", "warn", "error"). An empty level means info.
func Init(level string) error {
	if level == "" {
		level = "info"
	}

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl

	zl, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}

	Log = zl
	return nil
}
