package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/queue"
)

func drain(t *testing.T, ch <-chan a2a.Event, timeout time.Duration) []a2a.Event {
	t.Helper()
	var out []a2a.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out draining consumer channel")
		}
	}
}

func TestConsumerYieldsEventsInOrder(t *testing.T) {
	q := queue.NewEventQueue()
	q.Enqueue(a2a.NewMessageEvent(&a2a.Message{MessageID: "m1"}))
	q.Enqueue(a2a.NewMessageEvent(&a2a.Message{MessageID: "m2"}))
	q.Close()

	c := New(q, 20*time.Millisecond)
	events := drain(t, c.Events(context.Background()), time.Second)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Message.MessageID != "m1" || events[1].Message.MessageID != "m2" {
		t.Fatalf("expected fifo order, got %+v", events)
	}
}

func TestConsumerWaitsOnTransientEmptyThenDelivers(t *testing.T) {
	q := queue.NewEventQueue()
	c := New(q, 10*time.Millisecond)
	events := c.Events(context.Background())

	go func() {
		time.Sleep(30 * time.Millisecond)
		q.Enqueue(a2a.NewMessageEvent(&a2a.Message{MessageID: "late"}))
		q.Close()
	}()

	got := drain(t, events, time.Second)
	if len(got) != 1 || got[0].Message.MessageID != "late" {
		t.Fatalf("expected the delayed event to arrive, got %+v", got)
	}
}

func TestConsumerStopsOnContextCancel(t *testing.T) {
	q := queue.NewEventQueue()
	c := New(q, 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	events := c.Events(ctx)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected no events after immediate cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop after context cancellation")
	}
}

func TestConsumerClosesChannelWhenQueueClosesEmpty(t *testing.T) {
	q := queue.NewEventQueue()
	q.Close()
	c := New(q, 10*time.Millisecond)

	got := drain(t, c.Events(context.Background()), time.Second)
	if len(got) != 0 {
		t.Fatalf("expected no events from an already-closed empty queue, got %+v", got)
	}
}
