package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/birdnet-listener/internal/analysis/processor"
	"github.com/tphakala/birdnet-listener/internal/analysis/queue"
	"github.com/tphakala/birdnet-listener/internal/myaudio"
)

// Pipeline moves audio from a source through the windower and the bounded
// queue to the processor. Capture never waits for classification: when
// the processor falls behind the queue drops its oldest window.
type Pipeline struct {
	Source    myaudio.Source
	Windower  *myaudio.Windower
	Queue     *queue.WindowQueue
	Processor *processor.Processor
}

// Run blocks until ctx is cancelled or a stage fails.
func (p *Pipeline) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.Source.Run(ctx, p.Windower.Write)
	})
	g.Go(func() error {
		defer p.Queue.Close()
		return p.Windower.Run(ctx, func(w myaudio.Window) {
			p.Queue.Push(w)
		})
	})
	g.Go(func() error {
		return p.Processor.Run(ctx, p.Queue)
	})

	return g.Wait()
}
