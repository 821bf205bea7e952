// Package aggregator implements ResultAggregator: it drives an
// EventConsumer, folds each Event into task state via taskmanager.Manager,
// and exposes the result either as a full stream or as a single
// "consume until interrupted" call.
package aggregator

import (
	"context"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/consumer"
	"github.com/theapemachine/a2a-go/pkg/taskmanager"
)

// Folded pairs a raw Event with the task snapshot that resulted from
// folding it (nil for task-less Message events).
type Folded struct {
	Event a2a.Event
	Task  *a2a.Task
}

type Aggregator struct {
	tasks *taskmanager.Manager
}

func New(tasks *taskmanager.Manager) *Aggregator {
	return &Aggregator{tasks: tasks}
}

// ConsumeAll folds and forwards every event from c until its queue closes
// or ctx is canceled. Used by the streaming (message/stream, resubscribe)
// code paths.
func (a *Aggregator) ConsumeAll(ctx context.Context, c *consumer.Consumer) <-chan Folded {
	out := make(chan Folded)

	go func() {
		defer close(out)
		for ev := range c.Events(ctx) {
			task, err := a.tasks.Fold(ctx, ev)
			if err != nil {
				return
			}
			select {
			case out <- Folded{Event: ev, Task: task}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// ConsumeAndBreakOnInterrupt folds events synchronously until the task
// reaches a terminal or interruptible state, a bare Message event arrives,
// or the queue closes — whichever happens first — and returns that final
// snapshot. This backs the blocking (non-streaming) message/send path.
func (a *Aggregator) ConsumeAndBreakOnInterrupt(ctx context.Context, c *consumer.Consumer) (*a2a.Task, *a2a.Message, error) {
	// A derived, cancelable context lets us stop c.Events' goroutine the
	// moment we break out below; otherwise it would block forever trying
	// to send its next event to a channel nobody reads anymore (the queue
	// is deliberately left open for a later resubscribe).
	innerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var last *a2a.Task
	for ev := range c.Events(innerCtx) {
		if ev.Kind == "message" {
			return nil, ev.Message, nil
		}

		task, err := a.tasks.Fold(ctx, ev)
		if err != nil {
			return nil, nil, err
		}
		if task != nil {
			last = task
		}
		if task != nil && (task.Status.State.Terminal() || task.Status.State.Interruptible()) {
			return task, nil, nil
		}
	}
	return last, nil, ctx.Err()
}
