// Package myaudio holds the audio plumbing of the capture pipeline: the
// sound card source, the ring buffer that cuts fixed windows, PCM
// conversion and the WAV writers and readers.
//
// All PCM handled here is signed 16-bit little-endian mono at
// conf.SampleRate.
package myaudio

import "github.com/tphakala/birdnet-listener/internal/logger"

// GetLogger returns the myaudio module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("myaudio")
}
