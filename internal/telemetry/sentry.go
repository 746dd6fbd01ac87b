// Package telemetry reports errors to Sentry when the operator opts in.
// Nothing is sent unless telemetry.sentry is enabled with a DSN.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/birdnet-listener/internal/buildinfo"
	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/privacy"
)

// FlushTimeout bounds how long Close waits for queued events.
const FlushTimeout = 2 * time.Second

// ignoredCategories occur during normal operation and are not reported.
var ignoredCategories = map[errors.ErrorCategory]bool{
	errors.CategoryValidation:   true,
	errors.CategoryNotFound:     true,
	errors.CategoryCancellation: true,
}

// Config holds the Sentry client settings.
type Config struct {
	DSN         string
	Environment string
	SampleRate  float64
}

// ConfigFromSettings returns the Sentry config.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		DSN:         s.Telemetry.Sentry.DSN,
		Environment: s.Telemetry.Sentry.Environment,
		SampleRate:  s.Telemetry.Sentry.SampleRate,
	}
}

// Option adjusts the Sentry client options.
type Option func(*sentry.ClientOptions)

// WithTransport replaces the HTTP transport, for tests.
func WithTransport(t sentry.Transport) Option {
	return func(o *sentry.ClientOptions) { o.Transport = t }
}

// SentryReporter sends EnhancedErrors to Sentry on its own hub.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter creates a client for cfg.
func NewSentryReporter(cfg Config, opts ...Option) (*SentryReporter, error) {
	options := sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          "birdnet-listener@" + buildinfo.Get().Version,
		SampleRate:       cfg.SampleRate,
		AttachStacktrace: false,
		ServerName:       "",
		BeforeSend:       scrubEvent,
	}
	for _, opt := range opts {
		opt(&options)
	}

	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, errors.New(privacy.ScrubError(err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// ReportError implements errors.TelemetryReporter.
func (r *SentryReporter) ReportError(ee *errors.EnhancedError) {
	if ignoredCategories[ee.Category] {
		return
	}

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("component", ee.Component)
		scope.SetTag("category", string(ee.Category))
		scope.SetFingerprint([]string{ee.Component, string(ee.Category), fmt.Sprintf("%T", ee.Err)})

		if len(ee.Context) > 0 {
			details := make(map[string]any, len(ee.Context))
			for k, v := range ee.Context {
				if s, ok := v.(string); ok {
					v = privacy.ScrubMessage(s)
				}
				details[k] = v
			}
			scope.SetContext("error", details)
		}

		r.hub.CaptureMessage(fmt.Sprintf("[%s] %s", ee.Category, ee.Error()))
	})
}

// Close flushes queued events.
func (r *SentryReporter) Close() {
	r.hub.Flush(FlushTimeout)
}

// scrubEvent strips URLs and host identity before an event leaves.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	event.Message = privacy.ScrubMessage(event.Message)
	event.ServerName = ""
	event.User = sentry.User{}
	return event
}

// Setup installs a Sentry reporter for all EnhancedErrors when enabled.
// The returned function flushes and uninstalls it.
func Setup(settings *conf.Settings) (func(), error) {
	if !settings.Telemetry.Sentry.Enabled {
		return func() {}, nil
	}

	r, err := NewSentryReporter(ConfigFromSettings(settings))
	if err != nil {
		return nil, err
	}
	errors.SetTelemetryReporter(r)
	logger.Global().Module("telemetry").Info("error reporting enabled",
		logger.String("environment", settings.Telemetry.Sentry.Environment))

	return func() {
		errors.SetTelemetryReporter(nil)
		r.Close()
	}, nil
}
