package push

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// RedisConfigStore backs ConfigStore with a Redis hash per task id
// (key "push:<taskID>", field configID -> JSON config), so webhook
// registrations survive restarts and are visible across server replicas.
type RedisConfigStore struct {
	client *redis.Client
}

func NewRedisConfigStore(client *redis.Client) *RedisConfigStore {
	return &RedisConfigStore{client: client}
}

func hashKey(taskID string) string { return "push:" + taskID }

func (s *RedisConfigStore) Set(ctx context.Context, taskID string, cfg a2a.PushNotificationConfig) (a2a.PushNotificationConfig, error) {
	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return a2a.PushNotificationConfig{}, err
	}
	if err := s.client.HSet(ctx, hashKey(taskID), cfg.ID, data).Err(); err != nil {
		return a2a.PushNotificationConfig{}, err
	}
	return cfg, nil
}

func (s *RedisConfigStore) Get(ctx context.Context, taskID, configID string) (a2a.PushNotificationConfig, error) {
	data, err := s.client.HGet(ctx, hashKey(taskID), configID).Bytes()
	if err == redis.Nil {
		return a2a.PushNotificationConfig{}, &ErrConfigNotFound{TaskID: taskID, ConfigID: configID}
	}
	if err != nil {
		return a2a.PushNotificationConfig{}, err
	}
	var cfg a2a.PushNotificationConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return a2a.PushNotificationConfig{}, err
	}
	return cfg, nil
}

func (s *RedisConfigStore) List(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	all, err := s.client.HGetAll(ctx, hashKey(taskID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]a2a.PushNotificationConfig, 0, len(all))
	for _, data := range all {
		var cfg a2a.PushNotificationConfig
		if err := json.Unmarshal([]byte(data), &cfg); err != nil {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (s *RedisConfigStore) Delete(ctx context.Context, taskID, configID string) error {
	n, err := s.client.HDel(ctx, hashKey(taskID), configID).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return &ErrConfigNotFound{TaskID: taskID, ConfigID: configID}
	}
	return nil
}
