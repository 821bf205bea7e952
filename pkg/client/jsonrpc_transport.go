package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	rpcerrors "github.com/theapemachine/a2a-go/pkg/errors"
	"github.com/theapemachine/a2a-go/pkg/jsonrpc"
)

// JSONRPCTransport reuses pkg/jsonrpc.RPCClient's HTTP-POST idiom for unary
// calls and generalizes it with sseReader-based frame re-assembly for the
// two streaming methods (message/stream, tasks/resubscribe).
type JSONRPCTransport struct {
	rpc *jsonrpc.RPCClient
}

func NewJSONRPCTransport(url string, httpClient *http.Client, intercept func(*http.Request) error) *JSONRPCTransport {
	rpc := jsonrpc.NewRPCClient(url)
	if httpClient != nil {
		rpc.HTTPClient = httpClient
	}
	rpc.Intercept = intercept
	return &JSONRPCTransport{rpc: rpc}
}

func (t *JSONRPCTransport) SendMessage(ctx context.Context, params a2a.MessageSendParams) (StreamResponse, error) {
	var raw json.RawMessage
	if err := t.rpc.Call(ctx, "message/send", params, &raw); err != nil {
		return StreamResponse{}, translateRPCErr(err)
	}
	return decodeEvent(raw)
}

func (t *JSONRPCTransport) streamFrames(ctx context.Context, method string, params any) (<-chan StreamResponse, <-chan error) {
	out := make(chan StreamResponse)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		body, err := t.rpc.CallStream(ctx, method, params)
		if err != nil {
			errCh <- translateRPCErr(err)
			return
		}
		defer body.Close()

		reader := newSSEReader(body)
		for {
			frame, err := reader.Next()
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errCh <- &JSONError{Message: "reading event stream", Cause: err}
				}
				return
			}
			if frame.Data == "" {
				continue
			}
			ev, err := decodeEvent([]byte(frame.Data))
			if err != nil {
				errCh <- err
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
			if ev.Final() {
				return
			}
		}
	}()

	return out, errCh
}

func (t *JSONRPCTransport) SendMessageStreaming(ctx context.Context, params a2a.MessageSendParams) (<-chan StreamResponse, <-chan error) {
	return t.streamFrames(ctx, "message/stream", params)
}

func (t *JSONRPCTransport) Subscribe(ctx context.Context, taskID string) (<-chan StreamResponse, <-chan error) {
	return t.streamFrames(ctx, "tasks/resubscribe", a2a.TaskIDParams{ID: taskID})
}

func (t *JSONRPCTransport) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := t.rpc.Call(ctx, "tasks/get", params, &task); err != nil {
		return nil, translateRPCErr(err)
	}
	return &task, nil
}

func (t *JSONRPCTransport) ListTasks(ctx context.Context, filter a2a.TaskListFilter) ([]*a2a.Task, string, error) {
	var page struct {
		Tasks         []*a2a.Task `json:"tasks"`
		NextPageToken string      `json:"nextPageToken,omitempty"`
	}
	if err := t.rpc.Call(ctx, "tasks/list", filter, &page); err != nil {
		return nil, "", translateRPCErr(err)
	}
	return page.Tasks, page.NextPageToken, nil
}

func (t *JSONRPCTransport) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := t.rpc.Call(ctx, "tasks/cancel", params, &task); err != nil {
		return nil, translateRPCErr(err)
	}
	return &task, nil
}

func (t *JSONRPCTransport) SetTaskCallback(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	var result a2a.TaskPushNotificationConfig
	if err := t.rpc.Call(ctx, "tasks/pushNotificationConfig/set", cfg, &result); err != nil {
		return a2a.TaskPushNotificationConfig{}, translateRPCErr(err)
	}
	return result, nil
}

func (t *JSONRPCTransport) GetTaskCallback(ctx context.Context, taskID, configID string) (a2a.TaskPushNotificationConfig, error) {
	var result a2a.TaskPushNotificationConfig
	params := map[string]string{"id": taskID, "pushNotificationConfigId": configID}
	if err := t.rpc.Call(ctx, "tasks/pushNotificationConfig/get", params, &result); err != nil {
		return a2a.TaskPushNotificationConfig{}, translateRPCErr(err)
	}
	return result, nil
}

func (t *JSONRPCTransport) ListTaskCallbacks(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	var result []a2a.PushNotificationConfig
	params := map[string]string{"id": taskID}
	if err := t.rpc.Call(ctx, "tasks/pushNotificationConfig/list", params, &result); err != nil {
		return nil, translateRPCErr(err)
	}
	return result, nil
}

func (t *JSONRPCTransport) DeleteTaskCallback(ctx context.Context, taskID, configID string) error {
	params := map[string]string{"id": taskID, "pushNotificationConfigId": configID}
	if err := t.rpc.Call(ctx, "tasks/pushNotificationConfig/delete", params, nil); err != nil {
		return translateRPCErr(err)
	}
	return nil
}

func (t *JSONRPCTransport) GetExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	var card a2a.AgentCard
	if err := t.rpc.Call(ctx, "agent/authenticatedExtendedCard", nil, &card); err != nil {
		return nil, translateRPCErr(err)
	}
	return &card, nil
}

func (t *JSONRPCTransport) Close() error { return nil }

func translateRPCErr(err error) error {
	var rpcErr *rpcerrors.RpcError
	if errors.As(err, &rpcErr) {
		return &JSONRPCError{Code: rpcErr.Code, Message: rpcErr.Message, Data: rpcErr.Data}
	}
	return err
}
