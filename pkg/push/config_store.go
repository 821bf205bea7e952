// Package push implements the push-notification config store and sender:
// per-task webhook registration plus best-effort delivery with retry.
package push

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// ConfigStore persists webhook subscriptions per task. A task may have more
// than one config (e.g. distinct notification channels); each is addressed
// by its own id, scoped under the owning task.
type ConfigStore interface {
	Set(ctx context.Context, taskID string, cfg a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error)
	Get(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error)
	List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error)
	Delete(ctx context.Context, taskID, configID string) error
}

// ErrConfigNotFound is returned by Get/Delete on an unknown (taskID, configID).
type ErrConfigNotFound struct{ TaskID, ConfigID string }

func (e *ErrConfigNotFound) Error() string {
	return "push notification config not found: task=" + e.TaskID + " config=" + e.ConfigID
}

// InMemoryConfigStore is a mutex-guarded map-of-maps implementation,
// adequate for a single-process deployment or tests.
type InMemoryConfigStore struct {
	mu      sync.RWMutex
	configs map[string]map[string]a2a.PushNotificationConfig
}

func NewInMemoryConfigStore() *InMemoryConfigStore {
	return &InMemoryConfigStore{configs: make(map[string]map[string]a2a.PushNotificationConfig)}
}

func (s *InMemoryConfigStore) Set(ctx context.Context, taskID string, cfg a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.configs[taskID] == nil {
		s.configs[taskID] = make(map[string]a2a.PushNotificationConfig)
	}
	s.configs[taskID][cfg.ID] = cfg
	return cfg, nil
}

func (s *InMemoryConfigStore) Get(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[taskID][configID]
	if !ok {
		return a2a.PushNotificationConfig{}, &ErrConfigNotFound{TaskID: taskID, ConfigID: configID}
	}
	return cfg, nil
}

func (s *InMemoryConfigStore) List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]a2a.PushNotificationConfig, 0, len(s.configs[taskID]))
	for _, cfg := range s.configs[taskID] {
		out = append(out, cfg)
	}
	return out, nil
}

func (s *InMemoryConfigStore) Delete(ctx context.Context, taskID, configID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[taskID][configID]; !ok {
		return &ErrConfigNotFound{TaskID: taskID, ConfigID: configID}
	}
	delete(s.configs[taskID], configID)
	return nil
}
