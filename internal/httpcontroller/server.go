// Package httpcontroller serves the read-only dashboard.
package httpcontroller

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tphakala/birdnet-listener/internal/analysis/processor"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/observability"
	"github.com/tphakala/birdnet-listener/internal/rendercache"
	"github.com/tphakala/birdnet-listener/internal/suncalc"
)

// ShutdownTimeout bounds how long in-flight requests may finish after
// the server is asked to stop.
const ShutdownTimeout = 5 * time.Second

// RecordReader reads the whole detection store.
type RecordReader interface {
	ReadAll() ([]datastore.Record, error)
}

// HealthSource reports ingestion progress.
type HealthSource interface {
	Health() processor.Health
}

// SunSource returns the sun events of a day.
type SunSource interface {
	Times(date time.Time) (suncalc.SunTimes, error)
}

// Config holds the dashboard settings.
type Config struct {
	Listen      string
	Title       string
	Refresh     time.Duration
	Recent      int
	TopSpecies  int
	HeatmapDays int
	Threshold   float64  // confidence cut of the filtered species list
	Exclude     []string // species hidden from the filtered list
	ClipsDir    string   // snippet directory served under /clips, empty to disable
	DiskPath    string   // path whose filesystem usage is reported, empty to disable
	Window      time.Duration
	Location    *time.Location
}

// ConfigFromSettings maps settings onto a Config.
func ConfigFromSettings(settings *conf.Settings) Config {
	cfg := Config{
		Listen:      settings.WebServer.Listen,
		Title:       settings.Main.Name,
		Refresh:     time.Duration(settings.WebServer.RefreshSeconds) * time.Second,
		Recent:      settings.WebServer.Recent,
		TopSpecies:  settings.WebServer.TopSpecies,
		HeatmapDays: settings.WebServer.HeatmapDays,
		Threshold:   settings.Filter.DashboardThreshold,
		Exclude:     append(append([]string{}, settings.Filter.HumanLabels...), settings.Filter.Exclude...),
		Window:      settings.WindowDuration(),
		DiskPath:    settings.Output.CSV.Path,
	}
	if settings.Audio.Snippets.Enabled {
		cfg.ClipsDir = settings.Audio.Snippets.Path
	}
	return cfg
}

// Server encapsulates the Echo server and the data it reports on.
type Server struct {
	Echo *echo.Echo

	cfg     Config
	store   RecordReader
	cache   *rendercache.Cache
	health  HealthSource
	sun     SunSource
	metrics *observability.Metrics
	now     func() time.Time
	log     logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithHealth shows ingestion health on the page and on /health.
func WithHealth(h HealthSource) Option {
	return func(s *Server) { s.health = h }
}

// WithSunTimes shows the day's twilight, sunrise and sunset on the page.
func WithSunTimes(sun SunSource) Option {
	return func(s *Server) { s.sun = sun }
}

// WithMetrics records request metrics and exposes /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the server and registers its routes. Nothing listens until
// Start.
func New(cfg Config, store RecordReader, cache *rendercache.Cache, opts ...Option) *Server {
	if cfg.Title == "" {
		cfg.Title = "BirdNET listener"
	}
	if cfg.HeatmapDays <= 0 {
		cfg.HeatmapDays = 7
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	s := &Server{
		Echo:  echo.New(),
		cfg:   cfg,
		store: store,
		cache: cache,
		now:   time.Now,
		log:   logger.Global().Module("http"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Echo.HideBanner = true
	s.Echo.HidePort = true
	s.Echo.Renderer = newTemplateRenderer()
	s.configureMiddleware()
	s.initRoutes()
	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.Echo.Start(s.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Info("dashboard started", logger.String("listen", s.cfg.Listen))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	s.log.Info("dashboard stopped")
	return nil
}
