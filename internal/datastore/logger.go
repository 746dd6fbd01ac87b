// Package datastore persists detections. The CSV file is the source of
// truth; other sinks mirror it.
package datastore

import "github.com/tphakala/birdnet-listener/internal/logger"

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}
