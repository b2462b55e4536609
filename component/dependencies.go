package component

import (
	"log/slog"

	"github.com/mfkiwl/blockstream/metric"
)

// Dependencies provides all external dependencies needed by blocks.
// Factories receive this structure rather than individual fields so new
// dependencies can be added without breaking factory signatures.
type Dependencies struct {
	MetricsRegistry *metric.MetricsRegistry // Metrics registry for Prometheus (can be nil)
	Logger          *slog.Logger            // Structured logger (can be nil, defaults to slog.Default())
}

// GetLogger returns the configured logger or a default logger if none is provided
func (d *Dependencies) GetLogger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// GetLoggerWithBlock returns a logger configured with block context
func (d *Dependencies) GetLoggerWithBlock(blockName string) *slog.Logger {
	return d.GetLogger().With("block", blockName)
}
