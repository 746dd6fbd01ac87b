// Package notification messages push services about the first detection of
// each species per day.
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/tphakala/birdnet-listener/internal/conf"
	"github.com/tphakala/birdnet-listener/internal/datastore"
	"github.com/tphakala/birdnet-listener/internal/errors"
	"github.com/tphakala/birdnet-listener/internal/logger"
	"github.com/tphakala/birdnet-listener/internal/privacy"
)

// DefaultQueueSize bounds the messages waiting for the sender.
const DefaultQueueSize = 32

// ErrQueueFull is returned when the sender falls behind.
var ErrQueueFull = errors.NewStd("notification queue full")

// Sender delivers one message to every configured service.
type Sender interface {
	Send(message string, params *stypes.Params) []error
}

// Config holds the notification settings.
type Config struct {
	URLs      []string
	Timeout   time.Duration
	Station   string
	QueueSize int
}

// ConfigFromSettings returns the notification config.
func ConfigFromSettings(s *conf.Settings) Config {
	return Config{
		URLs:    s.Notify.URLs,
		Timeout: s.Notify.Timeout,
		Station: s.Main.Name,
	}
}

type message struct {
	title string
	body  string
}

// Notifier implements processor.Publisher. Messages are sent from a
// background goroutine so a slow service never stalls classification.
type Notifier struct {
	cfg    Config
	sender Sender
	log    logger.Logger

	mu     sync.Mutex
	day    string
	seen   map[string]bool
	closed bool

	queue chan message
	done  chan struct{}
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSender replaces the shoutrrr router.
func WithSender(s Sender) Option {
	return func(n *Notifier) { n.sender = s }
}

// New builds a notifier and starts its sender goroutine. Close stops it.
func New(cfg Config, opts ...Option) (*Notifier, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	n := &Notifier{
		cfg:  cfg,
		log:  logger.Global().Module("notification"),
		seen: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.sender == nil {
		sender, err := shoutrrr.CreateSender(cfg.URLs...)
		if err != nil {
			return nil, errors.New(privacy.ScrubError(err)).
				Component("notification").
				Category(errors.CategoryConfiguration).
				Build()
		}
		if cfg.Timeout > 0 {
			sender.Timeout = cfg.Timeout
		}
		sender.SetLogger(log.New(io.Discard, "", 0))
		n.sender = sender
	}

	n.queue = make(chan message, cfg.QueueSize)
	n.done = make(chan struct{})
	go n.run()
	return n, nil
}

// PublishDetection queues a message when rec is the first detection of its
// species on its calendar day.
func (n *Notifier) PublishDetection(_ context.Context, rec datastore.Record, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	day := rec.Timestamp.Format(time.DateOnly)
	if day != n.day {
		n.day = day
		clear(n.seen)
	}
	key := strings.ToLower(strings.TrimSpace(rec.Species))
	if n.seen[key] {
		return nil
	}

	select {
	case n.queue <- n.format(rec):
		n.seen[key] = true
		return nil
	default:
		return ErrQueueFull
	}
}

func (n *Notifier) format(rec datastore.Record) message {
	title := "New species today"
	if n.cfg.Station != "" {
		title = n.cfg.Station + ": " + title
	}
	return message{
		title: title,
		body: fmt.Sprintf("First %s of the day at %s (%.0f%%)",
			rec.Species, rec.Timestamp.Format("15:04"), rec.Confidence*100),
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for m := range n.queue {
		params := stypes.Params{}
		params.SetTitle(m.title)
		for _, err := range n.sender.Send(m.body, &params) {
			if err != nil {
				n.log.Warn("notification failed", logger.Error(privacy.ScrubError(err)))
			}
		}
	}
}

// Close sends what is queued and stops the sender goroutine.
func (n *Notifier) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	<-n.done
	return nil
}
