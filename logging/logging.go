package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the production JSON logger at the given level ("debug", "info", "warn", ...).
// The returned func flushes buffered entries and belongs in a defer.
func New(level string) (*zap.Logger, func(), error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	config := zap.NewProductionConfig()
	config.Level = lvl
	logger, err := config.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}

	return logger, func() { _ = logger.Sync() }, nil
}
