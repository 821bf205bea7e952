package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v3/client"
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// RESTTransport binds the resource-oriented `/v1/*` surface, built on
// fiber's HTTP client.
type RESTTransport struct {
	conn      *client.Client
	intercept func(ctx context.Context) map[string]string
}

func NewRESTTransport(baseURL string, intercept func(ctx context.Context) map[string]string) *RESTTransport {
	return &RESTTransport{
		conn:      client.New().SetBaseURL(baseURL),
		intercept: intercept,
	}
}

func (t *RESTTransport) headers(ctx context.Context, extra map[string]string) map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if t.intercept != nil {
		for k, v := range t.intercept(ctx) {
			h[k] = v
		}
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func restErr(res *client.Response, err error) error {
	if err != nil {
		return &HTTPError{Message: err.Error()}
	}
	if res.StatusCode() >= 300 {
		var body struct {
			Error struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
				Data    any    `json:"data"`
			} `json:"error"`
		}
		_ = res.JSON(&body)
		if body.Error.Code != 0 {
			return &JSONRPCError{Code: body.Error.Code, Message: body.Error.Message, Data: body.Error.Data}
		}
		return &HTTPError{Status: res.StatusCode(), Message: string(res.Body())}
	}
	return nil
}

func (t *RESTTransport) SendMessage(ctx context.Context, params a2a.MessageSendParams) (StreamResponse, error) {
	res, err := t.conn.Post("/v1/message:send", client.Config{
		Header: t.headers(ctx, nil), Body: params,
	})
	if e := restErr(res, err); e != nil {
		return StreamResponse{}, e
	}
	return decodeEvent(res.Body())
}

func (t *RESTTransport) SendMessageStreaming(ctx context.Context, params a2a.MessageSendParams) (<-chan StreamResponse, <-chan error) {
	return t.streamPost(ctx, "/v1/message:stream", params)
}

func (t *RESTTransport) streamRequest(ctx context.Context, do func() (*client.Response, error)) (<-chan StreamResponse, <-chan error) {
	out := make(chan StreamResponse)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		res, err := do()
		if e := restErr(res, err); e != nil {
			errCh <- e
			return
		}

		reader := newSSEReader(bytes.NewReader(res.Body()))
		for {
			frame, err := reader.Next()
			if err != nil {
				if err != io.EOF {
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

func (t *RESTTransport) streamPost(ctx context.Context, path string, body any) (<-chan StreamResponse, <-chan error) {
	return t.streamRequest(ctx, func() (*client.Response, error) {
		return t.conn.Post(path, client.Config{
			Header: t.headers(ctx, map[string]string{"Accept": "text/event-stream"}),
			Body:   body,
		})
	})
}

func (t *RESTTransport) Subscribe(ctx context.Context, taskID string) (<-chan StreamResponse, <-chan error) {
	return t.streamRequest(ctx, func() (*client.Response, error) {
		return t.conn.Get(fmt.Sprintf("/v1/tasks/%s:subscribe", taskID), client.Config{
			Header: t.headers(ctx, map[string]string{"Accept": "text/event-stream"}),
		})
	})
}

func (t *RESTTransport) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	res, err := t.conn.Get(fmt.Sprintf("/v1/tasks/%s", params.ID), client.Config{
		Header: t.headers(ctx, nil),
	})
	if e := restErr(res, err); e != nil {
		return nil, e
	}
	var task a2a.Task
	if err := json.Unmarshal(res.Body(), &task); err != nil {
		return nil, &JSONError{Message: "decoding task", Cause: err}
	}
	return &task, nil
}

func (t *RESTTransport) ListTasks(ctx context.Context, filter a2a.TaskListFilter) ([]*a2a.Task, string, error) {
	path := "/v1/tasks"
	if filter.PageToken != "" {
		path += "?pageToken=" + filter.PageToken
	}
	res, err := t.conn.Get(path, client.Config{Header: t.headers(ctx, nil)})
	if e := restErr(res, err); e != nil {
		return nil, "", e
	}
	var page struct {
		Tasks         []*a2a.Task `json:"tasks"`
		NextPageToken string      `json:"nextPageToken,omitempty"`
	}
	if err := json.Unmarshal(res.Body(), &page); err != nil {
		return nil, "", &JSONError{Message: "decoding task list", Cause: err}
	}
	return page.Tasks, page.NextPageToken, nil
}

func (t *RESTTransport) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	res, err := t.conn.Post(fmt.Sprintf("/v1/tasks/%s:cancel", params.ID), client.Config{
		Header: t.headers(ctx, nil),
	})
	if e := restErr(res, err); e != nil {
		return nil, e
	}
	var task a2a.Task
	if err := json.Unmarshal(res.Body(), &task); err != nil {
		return nil, &JSONError{Message: "decoding task", Cause: err}
	}
	return &task, nil
}

func (t *RESTTransport) SetTaskCallback(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	res, err := t.conn.Post(fmt.Sprintf("/v1/tasks/%s/pushNotificationConfigs", cfg.TaskID), client.Config{
		Header: t.headers(ctx, nil), Body: cfg.Config,
	})
	if e := restErr(res, err); e != nil {
		return a2a.TaskPushNotificationConfig{}, e
	}
	var out a2a.TaskPushNotificationConfig
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return a2a.TaskPushNotificationConfig{}, &JSONError{Message: "decoding push config", Cause: err}
	}
	return out, nil
}

func (t *RESTTransport) GetTaskCallback(ctx context.Context, taskID, configID string) (a2a.TaskPushNotificationConfig, error) {
	res, err := t.conn.Get(fmt.Sprintf("/v1/tasks/%s/pushNotificationConfigs/%s", taskID, configID), client.Config{
		Header: t.headers(ctx, nil),
	})
	if e := restErr(res, err); e != nil {
		return a2a.TaskPushNotificationConfig{}, e
	}
	var out a2a.TaskPushNotificationConfig
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return a2a.TaskPushNotificationConfig{}, &JSONError{Message: "decoding push config", Cause: err}
	}
	return out, nil
}

func (t *RESTTransport) ListTaskCallbacks(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	res, err := t.conn.Get(fmt.Sprintf("/v1/tasks/%s/pushNotificationConfigs", taskID), client.Config{
		Header: t.headers(ctx, nil),
	})
	if e := restErr(res, err); e != nil {
		return nil, e
	}
	var out []a2a.PushNotificationConfig
	if err := json.Unmarshal(res.Body(), &out); err != nil {
		return nil, &JSONError{Message: "decoding push config list", Cause: err}
	}
	return out, nil
}

func (t *RESTTransport) DeleteTaskCallback(ctx context.Context, taskID, configID string) error {
	res, err := t.conn.Delete(fmt.Sprintf("/v1/tasks/%s/pushNotificationConfigs/%s", taskID, configID), client.Config{
		Header: t.headers(ctx, nil),
	})
	return restErr(res, err)
}

func (t *RESTTransport) GetExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	res, err := t.conn.Get("/v1/card", client.Config{Header: t.headers(ctx, nil)})
	if e := restErr(res, err); e != nil {
		return nil, e
	}
	var card a2a.AgentCard
	if err := json.Unmarshal(res.Body(), &card); err != nil {
		return nil, &JSONError{Message: "decoding agent card", Cause: err}
	}
	return &card, nil
}

func (t *RESTTransport) Close() error { return nil }
