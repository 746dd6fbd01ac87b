package analysis

import (
	"context"
	"time"

	"github.com/tphakala/birdnet-listener/internal/analysis/processor"
	"github.com/tphakala/birdnet-listener/internal/birdnet"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/httpcontroller"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/mqtt"
	"github.com/tphakala/birdnet-listener/internal/myaudio"
	"github.com/tphakala/birdnet-listener/internal/notification"
	"github.com/tphakala/birdnet-listener/internal/observability"
	"github.com/tphakala/birdnet-listener/internal/privacy"
	"github.com/tphakala/birdnet-listener/internal/suncalc"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c *closers) add(fn func() error) { *c = append(*c, fn) }

func (c closers) Close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openSink opens the CSV store and the SQL mirrors the settings enable.
func openSink(settings *conf.Settings, cl *closers) (*datastore.Store, datastore.Sink, error) {
	store := datastore.NewStore(settings.Output.CSV.Path)

	var mirrors []datastore.Sink
	if settings.Output.SQLite.Enabled {
		m, err := datastore.OpenSQLiteMirror(settings.Output.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		cl.add(m.Close)
		mirrors = append(mirrors, m)
	}
	if settings.Output.MySQL.Enabled {
		m, err := datastore.OpenMySQLMirror(settings.Output.MySQL.DSN)
		if err != nil {
			return nil, nil, err
		}
		cl.add(m.Close)
		mirrors = append(mirrors, m)
	}

	if len(mirrors) == 0 {
		return store, store, nil
	}
	return store, &datastore.Fanout{Primary: store, Mirrors: mirrors}, nil
}

// newProcessor loads the model and builds the processor with every
// optional output the settings enable.
func newProcessor(ctx context.Context, settings *conf.Settings, m *observability.Metrics, cl *closers) (*processor.Processor, *datastore.Store, error) {
	log := GetLogger()

	store, sink, err := openSink(settings, cl)
	if err != nil {
		return nil, nil, err
	}

	bn, err := birdnet.New(&settings.BirdNET)
	if err != nil {
		return nil, nil, err
	}
	cl.add(func() error { bn.Close(); return nil })

	opts := []processor.Option{processor.WithMetrics(m.Pipeline)}

	if settings.Audio.Recording.Enabled {
		rec := myaudio.NewDailyRecorder(settings.Audio.Recording.Path)
		cl.add(rec.Close)
		opts = append(opts, processor.WithRecorder(rec))
	}

	if settings.MQTT.Enabled {
		cfg := mqtt.ConfigFromSettings(settings)
		client := mqtt.NewClient(cfg, m.MQTT)
		if err := client.Connect(ctx); err != nil {
			// The client keeps retrying in the background.
			log.Warn("MQTT broker not reachable yet",
				logger.String("broker", privacy.RedactUserinfo(cfg.Broker)),
				logger.Error(err))
		}
		pub := mqtt.NewPublisher(client, cfg.Topic)
		cl.add(func() error { pub.Close(); return nil })
		opts = append(opts, processor.WithPublisher(pub))
	}

	if settings.Notify.Enabled {
		n, err := notification.New(notification.ConfigFromSettings(settings))
		if err != nil {
			return nil, nil, err
		}
		cl.add(n.Close)
		opts = append(opts, processor.WithPublisher(n))
	}

	log.Info("analysis configured",
		logger.String("model", bn.ModelID),
		logger.String("store", store.Path()),
		logger.Float64("threshold", settings.Filter.Threshold),
		logger.Bool("sqlite", settings.Output.SQLite.Enabled),
		logger.Bool("mysql", settings.Output.MySQL.Enabled),
		logger.Bool("notify", settings.Notify.Enabled),
		logger.Bool("recording", settings.Audio.Recording.Enabled),
		logger.Bool("mqtt", settings.MQTT.Enabled))

	return processor.New(processor.ConfigFromSettings(settings), bn, sink, opts...), store, nil
}

// dashboardOptions returns the server options shared by realtime and
// dashboard mode.
func dashboardOptions(settings *conf.Settings, m *observability.Metrics) []httpcontroller.Option {
	var opts []httpcontroller.Option
	if settings.Telemetry.Enabled {
		opts = append(opts, httpcontroller.WithMetrics(m))
	}
	if settings.Main.Latitude != 0 || settings.Main.Longitude != 0 {
		opts = append(opts, httpcontroller.WithSunTimes(suncalc.New(settings.Main.Latitude, settings.Main.Longitude, time.Local)))
	}
	return opts
}
