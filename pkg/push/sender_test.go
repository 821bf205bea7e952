package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

func TestSenderNotifiesRegisteredWebhooksOnTerminalState(t *testing.T) {
	var received int32
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		gotToken = r.Header.Get("X-A2A-Notification-Token")
		var task a2a.Task
		if err := json.NewDecoder(r.Body).Decode(&task); err != nil {
			t.Errorf("decoding delivered task: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewInMemoryConfigStore()
	ctx := context.Background()
	if _, err := store.Set(ctx, "task-1", a2a.PushNotificationConfig{URL: srv.URL, Token: "secret"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sender := NewSender(store, 0, time.Millisecond)
	task := &a2a.Task{ID: "task-1", Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}
	if err := sender.Notify(ctx, task); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if atomic.LoadInt32(&received) != 1 {
		t.Fatalf("expected exactly 1 webhook delivery, got %d", received)
	}
	if gotToken != "secret" {
		t.Fatalf("expected notification token header, got %q", gotToken)
	}
}

func TestSenderSkipsNonTerminalNonInterruptibleStates(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := NewInMemoryConfigStore()
	ctx := context.Background()
	if _, err := store.Set(ctx, "task-1", a2a.PushNotificationConfig{URL: srv.URL}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sender := NewSender(store, 0, time.Millisecond)
	task := &a2a.Task{ID: "task-1", Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}
	if err := sender.Notify(ctx, task); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&received) != 0 {
		t.Fatalf("expected no delivery for a non-terminal, non-interruptible state, got %d", received)
	}
}

func TestSenderFiresOnInterruptibleState(t *testing.T) {
	done := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		select {
		case done <- struct{}{}:
		default:
		}
	}))
	defer srv.Close()

	store := NewInMemoryConfigStore()
	ctx := context.Background()
	if _, err := store.Set(ctx, "task-1", a2a.PushNotificationConfig{URL: srv.URL}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	sender := NewSender(store, 0, time.Millisecond)
	task := &a2a.Task{ID: "task-1", Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}}
	if err := sender.Notify(ctx, task); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected a webhook delivery for the input_required interruptible state")
	}
}
