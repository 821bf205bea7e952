package client

import (
	"context"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// ClientConfig holds the factory-level defaults BaseClient layers under
// any per-call a2a.MessageSendConfiguration.
type ClientConfig struct {
	Streaming           bool
	Polling             bool
	AcceptedOutputModes []string
	PushConfig          *a2a.PushNotificationConfig
	SupportedTransports []string
	UseClientPreference bool
}

// Result pairs one yielded StreamResponse with the task snapshot folded
// from it so far (nil for a standalone Message response).
type Result struct {
	Response StreamResponse
	Task     *a2a.Task
}

// BaseClient composes a ClientTransport with an ordered Consumer list and
// Interceptor chain behind a unified send/stream dispatch.
type BaseClient struct {
	transport   ClientTransport
	card        *a2a.AgentCard
	config      ClientConfig
	consumers   []Consumer
	interceptor Interceptor
}

func NewBaseClient(transport ClientTransport, card *a2a.AgentCard, cfg ClientConfig, consumers []Consumer, interceptor Interceptor) *BaseClient {
	return &BaseClient{transport: transport, card: card, config: cfg, consumers: consumers, interceptor: interceptor}
}

// mergeConfiguration layers the call-site configuration (authoritative)
// over the factory defaults. A call-site Blocking=false is still honored
// (it's a real choice, not a zero-value omission) because callers pass it
// as a pointer-free struct but signal "use the default" by passing nil.
func (c *BaseClient) mergeConfiguration(override *a2a.MessageSendConfiguration) a2a.MessageSendConfiguration {
	merged := a2a.MessageSendConfiguration{
		AcceptedOutputModes: c.config.AcceptedOutputModes,
		Blocking:            !c.config.Polling,
		PushNotification:    c.config.PushConfig,
	}
	if override == nil {
		return merged
	}
	if len(override.AcceptedOutputModes) > 0 {
		merged.AcceptedOutputModes = override.AcceptedOutputModes
	}
	merged.Blocking = override.Blocking
	if override.HistoryLength != nil {
		merged.HistoryLength = override.HistoryLength
	}
	if override.PushNotification != nil {
		merged.PushNotification = override.PushNotification
	}
	return merged
}

func (c *BaseClient) wantsStreaming() bool {
	return c.config.Streaming && c.card != nil && c.card.Capabilities.Streaming
}

func (c *BaseClient) notify(resp StreamResponse, task *a2a.Task) {
	for _, consumer := range c.consumers {
		consumer(resp, task)
	}
}

func (c *BaseClient) intercept(ctx context.Context, method string) context.Context {
	if c.interceptor == nil {
		return ctx
	}
	return c.interceptor.Intercept(ctx, method)
}

// SendMessage dispatches message/send or message/stream depending on the
// negotiated streaming capability, returning a channel of folded results
// that closes when the call completes (one item for the unary path, one
// per server-sent event for the streaming path).
func (c *BaseClient) SendMessage(ctx context.Context, msg a2a.Message, override *a2a.MessageSendConfiguration) (<-chan Result, <-chan error) {
	cfg := c.mergeConfiguration(override)
	params := a2a.MessageSendParams{Message: msg, Configuration: cfg}
	ctx = c.intercept(ctx, "message/send")

	out := make(chan Result, 1)
	errCh := make(chan error, 1)

	if !c.wantsStreaming() {
		go func() {
			defer close(out)
			defer close(errCh)
			resp, err := c.transport.SendMessage(ctx, params)
			if err != nil {
				errCh <- err
				return
			}
			tm := NewTaskManager()
			task, foldErr := tm.Fold(resp)
			if foldErr != nil {
				errCh <- foldErr
				return
			}
			c.notify(resp, task)
			out <- Result{Response: resp, Task: task}
		}()
		return out, errCh
	}

	go func() {
		defer close(out)
		defer close(errCh)
		events, transportErrs := c.transport.SendMessageStreaming(ctx, params)
		tm := NewTaskManager()
		for {
			select {
			case resp, ok := <-events:
				if !ok {
					return
				}
				task, err := tm.Fold(resp)
				if err != nil {
					errCh <- err
					return
				}
				c.notify(resp, task)
				select {
				case out <- Result{Response: resp, Task: task}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-transportErrs:
				if !ok {
					transportErrs = nil
					continue
				}
				if err != nil {
					errCh <- err
					return
				}
			}
		}
	}()
	return out, errCh
}

// Subscribe reattaches to an in-flight task's event stream. The agent card
// must advertise streaming; the client's own Streaming setting is not
// checked. The first event is required to be a Task snapshot, never a bare
// Message.
func (c *BaseClient) Subscribe(ctx context.Context, taskID string) (<-chan Result, <-chan error) {
	out := make(chan Result, 1)
	errCh := make(chan error, 1)

	if c.card != nil && !c.card.Capabilities.Streaming {
		go func() {
			defer close(out)
			errCh <- &InvalidArgsError{Message: "agent card does not advertise streaming capability"}
			close(errCh)
		}()
		return out, errCh
	}

	ctx = c.intercept(ctx, "tasks/resubscribe")

	go func() {
		defer close(out)
		defer close(errCh)
		events, transportErrs := c.transport.Subscribe(ctx, taskID)
		tm := NewTaskManager()
		first := true
		for {
			select {
			case resp, ok := <-events:
				if !ok {
					return
				}
				if first {
					first = false
					if resp.Kind != "task" {
						errCh <- &InvalidStateError{Message: "subscribe: first event was not a task snapshot"}
						return
					}
				}
				task, err := tm.Fold(resp)
				if err != nil {
					errCh <- err
					return
				}
				c.notify(resp, task)
				select {
				case out <- Result{Response: resp, Task: task}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-transportErrs:
				if !ok {
					transportErrs = nil
					continue
				}
				if err != nil {
					errCh <- err
					return
				}
			}
		}
	}()
	return out, errCh
}

func (c *BaseClient) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	return c.transport.GetTask(c.intercept(ctx, "tasks/get"), params)
}

func (c *BaseClient) ListTasks(ctx context.Context, filter a2a.TaskListFilter) ([]*a2a.Task, string, error) {
	return c.transport.ListTasks(c.intercept(ctx, "tasks/list"), filter)
}

func (c *BaseClient) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	return c.transport.CancelTask(c.intercept(ctx, "tasks/cancel"), params)
}

func (c *BaseClient) SetTaskCallback(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	return c.transport.SetTaskCallback(c.intercept(ctx, "tasks/pushNotificationConfig/set"), cfg)
}

func (c *BaseClient) GetTaskCallback(ctx context.Context, taskID, configID string) (a2a.TaskPushNotificationConfig, error) {
	return c.transport.GetTaskCallback(c.intercept(ctx, "tasks/pushNotificationConfig/get"), taskID, configID)
}

func (c *BaseClient) ListTaskCallbacks(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	return c.transport.ListTaskCallbacks(c.intercept(ctx, "tasks/pushNotificationConfig/list"), taskID)
}

func (c *BaseClient) DeleteTaskCallback(ctx context.Context, taskID, configID string) error {
	return c.transport.DeleteTaskCallback(c.intercept(ctx, "tasks/pushNotificationConfig/delete"), taskID, configID)
}

func (c *BaseClient) GetExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	return c.transport.GetExtendedCard(c.intercept(ctx, "agent/authenticatedExtendedCard"))
}

func (c *BaseClient) Close() error { return c.transport.Close() }
