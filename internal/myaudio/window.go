package myaudio

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallnest/ringbuffer"
	"golang.org/x/time/rate"

	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

// Window is one fixed-length unit of audio handed to the classifier.
type Window struct {
	ID    uuid.UUID
	Start time.Time
	PCM   []byte
}

// Duration returns the play time of the window.
func (w Window) Duration() time.Duration {
	return BytesToDuration(len(w.PCM))
}

const (
	windowPollInterval = 10 * time.Millisecond
	overflowLogEvery   = 10 * time.Second
)

// Windower collects PCM from the capture callback in a ring buffer and
// cuts it into windows of a fixed length. Write never blocks; audio that
// does not fit is dropped and counted.
type Windower struct {
	rb          *ringbuffer.RingBuffer
	windowBytes int
	now         func() time.Time
	metrics     *metrics.PipelineMetrics
	overflowLog *rate.Limiter
	log         logger.Logger
}

// NewWindower returns a windower cutting windows of the given length.
// The ring holds three windows so that a slow consumer does not lose
// audio straight away.
func NewWindower(window time.Duration, m *metrics.PipelineMetrics) *Windower {
	windowBytes := DurationToBytes(window)
	return &Windower{
		rb:          ringbuffer.New(windowBytes * 3),
		windowBytes: windowBytes,
		now:         time.Now,
		metrics:     m,
		overflowLog: rate.NewLimiter(rate.Every(overflowLogEvery), 1),
		log:         GetLogger().With(logger.String("component", "windower")),
	}
}

// Write buffers captured PCM. It is safe to call from the audio callback.
func (w *Windower) Write(pcm []byte) {
	n, err := w.rb.Write(pcm)
	if err == nil {
		return
	}

	w.metrics.RecordWindowDropped(metrics.StageCapture)
	if w.overflowLog.Allow() {
		w.log.Warn("capture ring buffer overflow, audio dropped",
			logger.Int("written", n),
			logger.Int("dropped", len(pcm)-n),
			logger.Int("capacity", w.rb.Capacity()),
			logger.Error(err))
	}
}

// Buffered returns the number of bytes waiting to be cut.
func (w *Windower) Buffered() int {
	return w.rb.Length()
}

// Run emits every complete window until ctx is cancelled.
func (w *Windower) Run(ctx context.Context, emit func(Window)) error {
	ticker := time.NewTicker(windowPollInterval)
	defer ticker.Stop()

	w.log.Info("windower started", logger.Duration("window", BytesToDuration(w.windowBytes)))
	defer w.log.Info("windower stopped")

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for w.rb.Length() >= w.windowBytes {
				emit(w.cut())
			}
		}
	}
}

// cut reads one window. The start time is derived from the audio still
// buffered behind it.
func (w *Windower) cut() Window {
	pcm := make([]byte, w.windowBytes)
	n, _ := w.rb.Read(pcm)
	pcm = pcm[:n]

	behind := BytesToDuration(w.rb.Length())
	start := w.now().Add(-behind - BytesToDuration(n))

	return Window{ID: uuid.New(), Start: start, PCM: pcm}
}
