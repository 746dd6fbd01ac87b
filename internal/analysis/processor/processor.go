// Package processor runs captured windows through classification,
// filtering and persistence. Each window is handled inside a recovery
// boundary: a failing or panicking window is logged and counted, and the
// worker moves on to the next one.
package processor

import (
	"context"
	"path/filepath"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/tphakala/birdnet-listener/internal/analysis/queue"
	"github.com/tphakala/birdnet-listener/internal/birdnet"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/myaudio"
	"github.com/tphakala/birdnet-listener/internal/observability/metrics"
)

// Recorder keeps the raw audio of every window.
type Recorder interface {
	Append(t time.Time, pcm []byte) error
}

// Publisher forwards stored detections to an external system.
type Publisher interface {
	PublishDetection(ctx context.Context, rec datastore.Record, clip string) error
}

// Config holds the per-window processing settings.
type Config struct {
	Threshold       float64
	HumanLabels     []string
	Exclude         []string
	SnippetsEnabled bool
	SnippetDir      string
	NameFormat      string
}

// ConfigFromSettings extracts the processing settings.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		Threshold:       s.Filter.Threshold,
		HumanLabels:     s.Filter.HumanLabels,
		Exclude:         s.Filter.Exclude,
		SnippetsEnabled: s.Audio.Snippets.Enabled,
		SnippetDir:      s.Audio.Snippets.Path,
		NameFormat:      s.Audio.Snippets.NameFormat,
	}
}

// Processor turns windows into stored detections.
type Processor struct {
	cfg        Config
	classifier birdnet.Classifier
	sink       datastore.Sink
	filter     *Filter
	recorder   Recorder
	publishers []Publisher
	metrics    *metrics.PipelineMetrics
	queue      atomic.Pointer[queue.WindowQueue]
	now        func() time.Time
	health     healthState
	log        logger.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithRecorder enables the daily raw recording.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) { p.recorder = r }
}

// WithPublisher publishes every stored detection. It may be given more
// than once; publishers are called in order.
func WithPublisher(pub Publisher) Option {
	return func(p *Processor) { p.publishers = append(p.publishers, pub) }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// WithClock replaces time.Now for health timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Processor) { p.now = now }
}

// New returns a processor classifying with c and storing to sink.
func New(cfg Config, c birdnet.Classifier, sink datastore.Sink, opts ...Option) *Processor {
	p := &Processor{
		cfg:        cfg,
		classifier: c,
		sink:       sink,
		filter:     NewFilter(cfg.Threshold, cfg.HumanLabels, cfg.Exclude),
		now:        time.Now,
		log:        GetLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run takes windows from q until ctx is cancelled or q is closed and empty.
func (p *Processor) Run(ctx context.Context, q *queue.WindowQueue) error {
	p.queue.Store(q)
	p.log.Info("window processor started", logger.Float64("threshold", p.cfg.Threshold))
	defer p.log.Info("window processor stopped")

	for {
		w, err := q.Pop(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		// Errors are recorded in Health and logged; the loop continues.
		_, _ = p.Process(ctx, w)
	}
}

// Process handles one window and returns the records it stored.
func (p *Processor) Process(ctx context.Context, w myaudio.Window) ([]datastore.Record, error) {
	p.health.started(p.now())

	stored, err := p.safeProcess(ctx, w)
	if err != nil {
		p.health.failed(p.now(), err, len(stored))
		p.metrics.RecordWindowProcessed(metrics.StatusFailed, p.now())
		p.log.Error("window processing failed",
			logger.String("window_id", w.ID.String()),
			logger.Time("window_start", w.Start),
			logger.Error(err))
		return stored, err
	}

	p.health.succeeded(p.now(), len(stored))
	p.metrics.RecordWindowProcessed(metrics.StatusProcessed, p.now())
	return stored, nil
}

// safeProcess is the recovery boundary around processWindow.
func (p *Processor) safeProcess(ctx context.Context, w myaudio.Window) (stored []datastore.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("panic while processing window: %v", r).
				Component("processor").
				Category(errors.CategorySystem).
				Context("window_id", w.ID.String()).
				Context("stack", string(debug.Stack())).
				Build()
		}
	}()
	return p.processWindow(ctx, w)
}

func (p *Processor) processWindow(ctx context.Context, w myaudio.Window) ([]datastore.Record, error) {
	ctx = logger.WithTraceID(ctx, w.ID.String())
	log := p.log.WithContext(ctx)

	if p.recorder != nil {
		if err := p.recorder.Append(w.Start, w.PCM); err != nil {
			log.Warn("daily recording append failed", logger.Error(err))
		}
	}

	start := time.Now()
	detections, err := p.classifier.Classify(ctx, myaudio.ConvertToFloat32(w.PCM))
	p.metrics.ObserveClassification(time.Since(start))
	if err != nil {
		return nil, errors.New(err).
			Component("processor").
			Category(errors.CategoryClassification).
			Context("window_id", w.ID.String()).
			Build()
	}

	var stored []datastore.Record
	var storeErrs []error

	for _, d := range detections {
		outcome := p.filter.Outcome(d)
		if outcome != metrics.OutcomeStored {
			p.metrics.RecordDetection(outcome)
			log.Debug("detection filtered",
				logger.String("species", d.Species),
				logger.Float64("confidence", d.Confidence),
				logger.String("reason", outcome))
			continue
		}

		rec := datastore.Record{
			Timestamp:  w.Start.Add(d.Start),
			Species:    d.Species,
			Confidence: d.Confidence,
		}
		if err := p.sink.Append(ctx, rec); err != nil {
			p.metrics.RecordDetection(metrics.OutcomeStoreError)
			storeErrs = append(storeErrs, err)
			continue
		}
		p.metrics.RecordDetection(metrics.OutcomeStored)
		stored = append(stored, rec)

		clip := p.saveSnippet(w, d, rec)
		log.Info("detection stored",
			logger.String("species", rec.Species),
			logger.Float64("confidence", rec.Confidence),
			logger.Time("timestamp", rec.Timestamp),
			logger.String("clip", clip))

		p.publish(ctx, rec, clip)
	}

	if len(stored) == 0 && len(storeErrs) == 0 {
		log.Debug("no detections above threshold", logger.Int("candidates", len(detections)))
	}

	if len(storeErrs) > 0 {
		return stored, errors.New(errors.Join(storeErrs...)).
			Component("processor").
			Category(errors.CategoryFileIO).
			Context("window_id", w.ID.String()).
			Context("failed", len(storeErrs)).
			Build()
	}
	return stored, nil
}

// saveSnippet writes the detection's part of the window and returns the
// clip file name, or "" when snippets are off or the write failed.
func (p *Processor) saveSnippet(w myaudio.Window, d birdnet.Detection, rec datastore.Record) string {
	if !p.cfg.SnippetsEnabled {
		return ""
	}

	pcm := myaudio.Slice(w.PCM, d.Start, d.End)
	if len(pcm) == 0 {
		return ""
	}

	name := myaudio.SnippetName(p.cfg.NameFormat, rec.Timestamp, rec.Species, rec.Confidence)
	if err := myaudio.SavePCMDataToWAV(filepath.Join(p.cfg.SnippetDir, name), pcm); err != nil {
		p.log.Warn("saving audio snippet failed",
			logger.String("species", rec.Species),
			logger.Error(err))
		return ""
	}
	return name
}

func (p *Processor) publish(ctx context.Context, rec datastore.Record, clip string) {
	for _, pub := range p.publishers {
		if err := pub.PublishDetection(ctx, rec, clip); err != nil {
			p.log.Warn("publishing detection failed",
				logger.String("species", rec.Species),
				logger.Error(err))
		}
	}
}

// Health returns a snapshot of ingestion progress.
func (p *Processor) Health() Health {
	h := p.health.snapshot()
	if q := p.queue.Load(); q != nil {
		h.Dropped = q.Dropped()
	}
	return h
}
