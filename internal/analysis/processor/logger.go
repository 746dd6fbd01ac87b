package processor

import (
	"github.com/tphakala/birdnet-listener/internal/logger"
)

// GetLogger returns the processor package logger scoped to the analysis module
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis").Module("processor")
}
