package client

import (
	"context"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// StreamResponse is the wire variant a client folds: exactly the same
// tagged union the server emits onto an EventQueue, so both sides of the
// protocol share one Go type instead of two parallel representations.
type StreamResponse = a2a.Event

// ClientTransport is the interface every wire binding (JSON-RPC, REST,
// gRPC, stdio) implements. BaseClient and ClientTaskManager are written
// entirely against this interface and never see transport-specific types.
type ClientTransport interface {
	SendMessage(ctx context.Context, params a2a.MessageSendParams) (StreamResponse, error)
	SendMessageStreaming(ctx context.Context, params a2a.MessageSendParams) (<-chan StreamResponse, <-chan error)
	GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error)
	ListTasks(ctx context.Context, filter a2a.TaskListFilter) ([]*a2a.Task, string, error)
	CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error)
	SetTaskCallback(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error)
	GetTaskCallback(ctx context.Context, taskID, configID string) (a2a.TaskPushNotificationConfig, error)
	ListTaskCallbacks(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error)
	DeleteTaskCallback(ctx context.Context, taskID, configID string) error
	Subscribe(ctx context.Context, taskID string) (<-chan StreamResponse, <-chan error)
	GetExtendedCard(ctx context.Context) (*a2a.AgentCard, error)
	Close() error
}

// Consumer observes every event a BaseClient yields, in the order it was
// produced, before the caller sees it. Used for logging, metrics, or
// building a local task cache.
type Consumer func(resp StreamResponse, task *a2a.Task)

// Interceptor mutates or inspects an outgoing call before the transport
// sends it; AuthInterceptor (pkg/auth) is the canonical implementation.
type Interceptor interface {
	Intercept(ctx context.Context, method string) context.Context
}
