// Package consumer implements EventConsumer: the goroutine-side reader that
// pulls Events off an EventQueue until it closes, feeding them to callers
// over a Go channel that respects context cancellation.
package consumer

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/queue"
)

// Consumer drains one EventQueue, retrying on transient emptiness at a
// fixed poll interval rather than busy-looping.
type Consumer struct {
	Queue        *queue.EventQueue
	PollInterval time.Duration
	logger       *log.Logger
}

func New(q *queue.EventQueue, pollInterval time.Duration) *Consumer {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Consumer{Queue: q, PollInterval: pollInterval, logger: log.Default().WithPrefix("consumer")}
}

// Events returns a channel of Events that closes once the underlying queue
// closes or ctx is done. The consumer goroutine exits in either case.
func (c *Consumer) Events(ctx context.Context) <-chan a2a.Event {
	out := make(chan a2a.Event)

	go func() {
		defer close(out)
		ticker := time.NewTicker(c.PollInterval)
		defer ticker.Stop()

		for {
			ev, result := c.Queue.Dequeue()
			switch result {
			case queue.PollReady:
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
				continue
			case queue.PollClosed:
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-c.Queue.Wait():
			case <-ticker.C:
				c.logger.Debug("poll: queue still empty")
			}
		}
	}()

	return out
}
