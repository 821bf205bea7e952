package client

import (
	"context"
	"encoding/json"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/rpc"
)

// GRPCTransport binds the A2A operations onto google.golang.org/grpc using
// pkg/rpc.JSONCodec in place of a protoc-generated stub: every request and
// response is a plain Go struct marshaled as JSON over gRPC's HTTP/2
// framing, so this transport never needs a compiled .proto schema.
type GRPCTransport struct {
	conn *grpc.ClientConn
}

func NewGRPCTransport(target string, opts ...grpc.DialOption) (*GRPCTransport, error) {
	dialOpts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rpc.JSONCodec{})),
	}, opts...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, &HTTPError{Message: "dialing grpc target: " + err.Error()}
	}
	return &GRPCTransport{conn: conn}, nil
}

func (t *GRPCTransport) invoke(ctx context.Context, method string, req, reply any) error {
	if err := t.conn.Invoke(ctx, method, req, reply); err != nil {
		return &HTTPError{Message: "grpc invoke " + method + ": " + err.Error()}
	}
	return nil
}

func (t *GRPCTransport) SendMessage(ctx context.Context, params a2a.MessageSendParams) (StreamResponse, error) {
	var raw json.RawMessage
	if err := t.invoke(ctx, rpc.MethodSendMessage, &params, &raw); err != nil {
		return StreamResponse{}, err
	}
	return decodeEvent(raw)
}

func (t *GRPCTransport) streamCall(ctx context.Context, method string, req any) (<-chan StreamResponse, <-chan error) {
	out := make(chan StreamResponse)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream, err := t.conn.NewStream(ctx, &grpc.StreamDesc{StreamName: method, ServerStreams: true}, method)
		if err != nil {
			errCh <- &HTTPError{Message: "opening grpc stream: " + err.Error()}
			return
		}
		if err := stream.SendMsg(req); err != nil {
			errCh <- &HTTPError{Message: "sending grpc stream request: " + err.Error()}
			return
		}
		if err := stream.CloseSend(); err != nil {
			errCh <- &HTTPError{Message: "closing grpc stream send side: " + err.Error()}
			return
		}

		for {
			var raw json.RawMessage
			if err := stream.RecvMsg(&raw); err != nil {
				if err != io.EOF {
					errCh <- &HTTPError{Message: "receiving grpc stream: " + err.Error()}
				}
				return
			}
			ev, err := decodeEvent(raw)
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

func (t *GRPCTransport) SendMessageStreaming(ctx context.Context, params a2a.MessageSendParams) (<-chan StreamResponse, <-chan error) {
	return t.streamCall(ctx, rpc.MethodSendMessageStream, &params)
}

func (t *GRPCTransport) Subscribe(ctx context.Context, taskID string) (<-chan StreamResponse, <-chan error) {
	return t.streamCall(ctx, rpc.MethodResubscribe, &a2a.TaskIDParams{ID: taskID})
}

func (t *GRPCTransport) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := t.invoke(ctx, rpc.MethodGetTask, &params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *GRPCTransport) ListTasks(ctx context.Context, filter a2a.TaskListFilter) ([]*a2a.Task, string, error) {
	var page struct {
		Tasks         []*a2a.Task `json:"tasks"`
		NextPageToken string      `json:"nextPageToken,omitempty"`
	}
	if err := t.invoke(ctx, rpc.MethodListTasks, &filter, &page); err != nil {
		return nil, "", err
	}
	return page.Tasks, page.NextPageToken, nil
}

func (t *GRPCTransport) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	var task a2a.Task
	if err := t.invoke(ctx, rpc.MethodCancelTask, &params, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *GRPCTransport) SetTaskCallback(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	var out a2a.TaskPushNotificationConfig
	if err := t.invoke(ctx, rpc.MethodSetTaskCallback, &cfg, &out); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return out, nil
}

func (t *GRPCTransport) GetTaskCallback(ctx context.Context, taskID, configID string) (a2a.TaskPushNotificationConfig, error) {
	var out a2a.TaskPushNotificationConfig
	req := map[string]string{"taskId": taskID, "pushNotificationConfigId": configID}
	if err := t.invoke(ctx, rpc.MethodGetTaskCallback, &req, &out); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return out, nil
}

func (t *GRPCTransport) ListTaskCallbacks(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	var out []a2a.PushNotificationConfig
	req := map[string]string{"taskId": taskID}
	if err := t.invoke(ctx, rpc.MethodListTaskCallbacks, &req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *GRPCTransport) DeleteTaskCallback(ctx context.Context, taskID, configID string) error {
	var out struct{}
	req := map[string]string{"taskId": taskID, "pushNotificationConfigId": configID}
	return t.invoke(ctx, rpc.MethodDeleteTaskCallback, &req, &out)
}

func (t *GRPCTransport) GetExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	var card a2a.AgentCard
	if err := t.invoke(ctx, rpc.MethodGetExtendedCard, &struct{}{}, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

func (t *GRPCTransport) Close() error { return t.conn.Close() }
