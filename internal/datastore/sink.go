package datastore

import (
	"context"

	"github.com/tphakala/birdnet-listener/internal/logger"
)

// Sink receives detections as they are stored.
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Fanout writes to a primary sink and then to mirrors. Only a primary
// failure is returned; mirror failures are logged.
type Fanout struct {
	Primary Sink
	Mirrors []Sink
}

// Append implements Sink.
func (f *Fanout) Append(ctx context.Context, rec Record) error {
	if err := f.Primary.Append(ctx, rec); err != nil {
		return err
	}

	for _, m := range f.Mirrors {
		if err := m.Append(ctx, rec); err != nil {
			GetLogger().Warn("mirror append failed",
				logger.String("species", rec.Species),
				logger.Error(err))
		}
	}
	return nil
}
