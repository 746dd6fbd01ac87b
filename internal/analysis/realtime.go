package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdnet-listener/internal/analysis/queue"
	"github.com/tphakala/birdnet-listener/internal/autocommit"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/httpcontroller"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/myaudio"
	"github.com/tphakala/birdnet-listener/internal/observability"
	"github.com/tphakala/birdnet-listener/internal/rendercache"
)

// RealtimeAnalysis captures from the configured sound card and runs the
// commit task and the dashboard alongside, until ctx is cancelled.
func RealtimeAnalysis(ctx context.Context, settings *conf.Settings) (err error) {
	log := GetLogger()

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	var cl closers
	defer func() {
		if cerr := cl.Close(); cerr != nil {
			log.Warn("releasing resources failed", logger.Error(cerr))
		}
	}()

	proc, store, err := newProcessor(ctx, settings, m, &cl)
	if err != nil {
		return err
	}

	pipeline := &Pipeline{
		Source:    myaudio.NewMalgoSource(settings.Audio.Source),
		Windower:  myaudio.NewWindower(settings.WindowDuration(), m.Pipeline),
		Queue:     queue.New(settings.Audio.QueueSize, m.Pipeline),
		Processor: proc,
	}

	log.Info("starting realtime analysis",
		logger.String("source", settings.Audio.Source),
		logger.Duration("window", settings.WindowDuration()),
		logger.Int("queue_size", settings.Audio.QueueSize))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipeline.Run(ctx) })

	if settings.AutoCommit.Enabled {
		task := autocommit.New(autocommit.ConfigFromSettings(settings),
			autocommit.WithMetrics(m.Commit))
		g.Go(func() error { return task.Start(ctx) })
	}

	if settings.WebServer.Enabled {
		opts := append(dashboardOptions(settings, m), httpcontroller.WithHealth(proc))
		cache := rendercache.New(rendercache.WithMetrics(m.Cache))
		server := httpcontroller.New(httpcontroller.ConfigFromSettings(settings), store, cache, opts...)
		g.Go(func() error { return server.Start(ctx) })
	}

	err = g.Wait()
	log.Info("realtime analysis stopped", logger.Any("health", proc.Health()))
	return err
}

// Dashboard serves the dashboard over an existing store until ctx is
// cancelled.
func Dashboard(ctx context.Context, settings *conf.Settings) error {
	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	store := datastore.NewStore(settings.Output.CSV.Path)
	cache := rendercache.New(rendercache.WithMetrics(m.Cache))
	return httpcontroller.New(httpcontroller.ConfigFromSettings(settings), store, cache, dashboardOptions(settings, m)...).Start(ctx)
}
