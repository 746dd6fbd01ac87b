package birdnet

import "github.com/tphakala/birdnet-listener/internal/logger"

// GetLogger returns the birdnet module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("birdnet")
}
