package analysis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/birdnet-listener/internal/analysis/processor"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/myaudio"
	"github.com/tphakala/birdnet-listener/internal/observability"
)

// FileResult summarizes an offline run.
type FileResult struct {
	Info    myaudio.AudioInfo
	Start   time.Time
	Health  processor.Health
	Elapsed time.Duration
}

// FileAnalysis ingests a WAV or FLAC recording through the realtime processor.
// Window timestamps are start plus their offset in the file; a zero start
// uses the file modification time.
func FileAnalysis(ctx context.Context, settings *conf.Settings, path string, start time.Time) (FileResult, error) {
	if err := validateAudioFile(path); err != nil {
		return FileResult{}, err
	}
	if start.IsZero() {
		info, err := os.Stat(path)
		if err != nil {
			return FileResult{}, err
		}
		start = info.ModTime()
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return FileResult{}, err
	}

	var cl closers
	defer func() {
		if cerr := cl.Close(); cerr != nil {
			GetLogger().Warn("releasing resources failed", logger.Error(cerr))
		}
	}()

	proc, _, err := newProcessor(ctx, settings, m, &cl)
	if err != nil {
		return FileResult{}, err
	}
	return processFile(ctx, proc, path, settings.WindowDuration(), start)
}

// processFile feeds every window of the file to proc. A failing window is
// recorded in the processor health and does not stop the run.
func processFile(ctx context.Context, proc *processor.Processor, path string, window time.Duration, start time.Time) (FileResult, error) {
	log := GetLogger().With(logger.String("file", path))
	began := time.Now()

	info, err := myaudio.ReadAudioWindows(ctx, path, window, func(offset time.Duration, pcm []byte) error {
		w := myaudio.Window{ID: uuid.New(), Start: start.Add(offset), PCM: pcm}
		if _, err := proc.Process(ctx, w); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	})

	result := FileResult{
		Info:    info,
		Start:   start,
		Health:  proc.Health(),
		Elapsed: time.Since(began),
	}
	if err != nil {
		return result, err
	}

	log.Info("file analysis finished",
		logger.Duration("audio", info.Duration),
		logger.Duration("elapsed", result.Elapsed),
		logger.Int64("windows", int64(result.Health.Processed+result.Health.Failed)),
		logger.Int64("failed", int64(result.Health.Failed)),
		logger.Int64("stored", int64(result.Health.Stored)))
	return result, nil
}

// validateAudioFile checks the path names a non-empty regular file.
func validateAudioFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return errors.New(err).
			Component("analysis").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	case info.IsDir():
		return errors.New(fmt.Errorf("%s is a directory, not a file", path)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	case info.Size() == 0:
		return errors.New(fmt.Errorf("%s is empty", path)).
			Component("analysis").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}
