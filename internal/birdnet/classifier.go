// Package birdnet adapts the BirdNET acoustic model to a window classifier.
package birdnet

import (
	"context"
	"time"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
)

// ErrInvalidWindow is returned for windows the model cannot analyze.
var ErrInvalidWindow = errors.NewStd("invalid audio window")

// Detection is one classifier result with offsets relative to the window start.
type Detection struct {
	Species    string
	Confidence float64
	Start      time.Duration
	End        time.Duration
}

// Classifier turns a mono float32 window sampled at conf.SampleRate into
// zero or more detections.
type Classifier interface {
	Classify(ctx context.Context, window []float32) ([]Detection, error)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, window []float32) ([]Detection, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, window []float32) ([]Detection, error) {
	return f(ctx, window)
}

// Chunk is a model-sized slice of a window.
type Chunk struct {
	Samples []float32
	Start   time.Duration
	End     time.Duration
}

// SplitChunks cuts window into CaptureLength second chunks stepping by
// CaptureLength-overlap seconds. A trailing chunk shorter than half the
// capture length is dropped; a longer one is zero padded.
func SplitChunks(window []float32, overlap float64) []Chunk {
	chunkLen := conf.CaptureLength * conf.SampleRate
	step := int((float64(conf.CaptureLength) - overlap) * conf.SampleRate)
	if step <= 0 {
		step = chunkLen
	}
	minLen := chunkLen / 2

	var chunks []Chunk
	for start := 0; start < len(window); start += step {
		end := min(start+chunkLen, len(window))
		if end-start < minLen {
			break
		}

		samples := make([]float32, chunkLen)
		copy(samples, window[start:end])

		chunks = append(chunks, Chunk{
			Samples: samples,
			Start:   samplesToDuration(start),
			End:     samplesToDuration(end),
		})

		if end == len(window) {
			break
		}
	}
	return chunks
}

func samplesToDuration(n int) time.Duration {
	return time.Duration(n) * time.Second / conf.SampleRate
}
