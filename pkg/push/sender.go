package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// Sender delivers task snapshots to every webhook registered for a task. It
// fires only on terminal or interruptible snapshots: intermediate
// "working" updates are not worth a webhook round trip.
type Sender struct {
	store      ConfigStore
	client     *http.Client
	retryQueue chan deliveryAttempt
	maxRetries int
	retryWait  time.Duration
	logger     *log.Logger
}

type deliveryAttempt struct {
	taskID  string
	config  a2a.PushNotificationConfig
	task    *a2a.Task
	retries int
}

func NewSender(store ConfigStore, maxRetries int, retryWait time.Duration) *Sender {
	s := &Sender{
		store:      store,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryQueue: make(chan deliveryAttempt, 1000),
		maxRetries: maxRetries,
		retryWait:  retryWait,
		logger:     log.Default().WithPrefix("push"),
	}
	go s.retryWorker()
	return s
}

// Notify sends the task snapshot to every registered webhook if the task is
// in a terminal or interruptible state; it is a no-op otherwise.
func (s *Sender) Notify(ctx context.Context, task *a2a.Task) error {
	if !task.Status.State.Terminal() && !task.Status.State.Interruptible() {
		return nil
	}

	configs, err := s.store.List(ctx, task.ID)
	if err != nil {
		return err
	}

	// Fan out concurrently: one slow or unreachable webhook must not delay
	// delivery to the others.
	var wg sync.WaitGroup
	for _, cfg := range configs {
		wg.Add(1)
		go func(cfg a2a.PushNotificationConfig) {
			defer wg.Done()
			if err := s.deliver(ctx, task, cfg); err != nil {
				s.logger.Warn("push delivery failed, queued for retry", "task", task.ID, "error", err)
				s.retryQueue <- deliveryAttempt{taskID: task.ID, config: cfg, task: task}
			}
		}(cfg)
	}
	wg.Wait()
	return nil
}

func (s *Sender) deliver(ctx context.Context, task *a2a.Task, cfg a2a.PushNotificationConfig) error {
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task snapshot: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("X-A2A-Notification-Token", cfg.Token)
	}
	if cfg.Authentication != nil {
		for _, scheme := range cfg.Authentication.Schemes {
			if scheme == "Bearer" && cfg.Authentication.Credentials != "" {
				req.Header.Set("Authorization", "Bearer "+cfg.Authentication.Credentials)
			}
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *Sender) retryWorker() {
	for attempt := range s.retryQueue {
		if attempt.retries >= s.maxRetries {
			s.logger.Error("push notification exhausted retries", "task", attempt.taskID)
			continue
		}

		time.Sleep(s.retryWait)

		if err := s.deliver(context.Background(), attempt.task, attempt.config); err != nil {
			attempt.retries++
			s.retryQueue <- attempt
		}
	}
}
