// Package analysis wires capture, classification, storage and the
// dashboard into the realtime and file analysis modes.
package analysis

import "github.com/tphakala/birdnet-listener/internal/logger"

// GetLogger returns the analysis module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("analysis")
}
