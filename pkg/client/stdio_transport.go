package client

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/jsonrpc"
)

// terminateTimeout is how long Close waits after SIGTERM before resorting
// to SIGKILL.
const terminateTimeout = 2 * time.Second

// errStdioClosed fails every call or stream still in flight when the
// subprocess connection goes away.
var errStdioClosed = &HTTPError{Message: "stdio transport: connection closed"}

// StdioTransport spawns a long-lived agent subprocess and exchanges
// newline-delimited JSON-RPC frames over its stdin/stdout.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	mu      sync.Mutex
	closed  bool
	nextID  atomic.Int64
	pending map[int64]chan jsonrpc.RPCResponse
	streams map[int64]chan json.RawMessage
}

// NewStdioTransport starts `command` with `args`, wiring its stdio pipes
// for JSON-RPC exchange. The caller owns the subprocess lifetime via Close.
func NewStdioTransport(ctx context.Context, command string, args ...string) (*StdioTransport, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &HTTPError{Message: "opening stdio stdin: " + err.Error()}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &HTTPError{Message: "opening stdio stdout: " + err.Error()}
	}

	if err := cmd.Start(); err != nil {
		return nil, &HTTPError{Message: "starting stdio agent subprocess: " + err.Error()}
	}

	t := &StdioTransport{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewScanner(stdout),
		pending: make(map[int64]chan jsonrpc.RPCResponse),
		streams: make(map[int64]chan json.RawMessage),
	}
	t.stdout.Buffer(make([]byte, 64*1024), 8*1024*1024)
	go t.readLoop()
	return t, nil
}

func (t *StdioTransport) readLoop() {
	// Whatever ends the loop — clean EOF, a dying child, or Close's
	// signal escalation tearing stdout down — every caller still parked
	// on a response must be failed rather than left waiting.
	defer t.failAll()

	for t.stdout.Scan() {
		line := t.stdout.Bytes()
		if len(line) == 0 {
			continue
		}

		var envelope struct {
			ID     json.RawMessage `json:"id"`
			Stream bool            `json:"stream,omitempty"`
		}
		if err := json.Unmarshal(line, &envelope); err != nil {
			continue
		}

		var id int64
		_ = json.Unmarshal(envelope.ID, &id)

		t.mu.Lock()
		if ch, ok := t.streams[id]; ok {
			raw := append([]byte(nil), line...)
			t.mu.Unlock()
			ch <- raw
			continue
		}
		waiter, ok := t.pending[id]
		t.mu.Unlock()
		if !ok {
			continue
		}

		var resp jsonrpc.RPCResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		waiter <- resp
	}
}

func (t *StdioTransport) call(ctx context.Context, method string, params any) (jsonrpc.RPCResponse, error) {
	id := t.nextID.Add(1)
	wait := make(chan jsonrpc.RPCResponse, 1)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return jsonrpc.RPCResponse{}, errStdioClosed
	}
	t.pending[id] = wait
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	req := jsonrpc.Request{
		Message: jsonrpc.Message{MessageIdentifier: jsonrpc.MessageIdentifier{ID: id}, JSONRPC: "2.0"},
		Method:  method,
		Params:  params,
	}
	body, err := json.Marshal(req)
	if err != nil {
		return jsonrpc.RPCResponse{}, err
	}
	body = append(body, '\n')

	if _, err := t.stdin.Write(body); err != nil {
		return jsonrpc.RPCResponse{}, &HTTPError{Message: "writing to stdio agent: " + err.Error()}
	}

	select {
	case resp, ok := <-wait:
		if !ok {
			return jsonrpc.RPCResponse{}, errStdioClosed
		}
		if resp.Error != nil {
			return resp, &JSONRPCError{Code: resp.Error.Code, Message: resp.Error.Message, Data: resp.Error.Data}
		}
		return resp, nil
	case <-ctx.Done():
		return jsonrpc.RPCResponse{}, ctx.Err()
	}
}

func (t *StdioTransport) unmarshalResult(resp jsonrpc.RPCResponse, out any) error {
	if resp.Result == nil {
		return nil
	}
	b, err := json.Marshal(resp.Result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (t *StdioTransport) SendMessage(ctx context.Context, params a2a.MessageSendParams) (StreamResponse, error) {
	resp, err := t.call(ctx, "message/send", params)
	if err != nil {
		return StreamResponse{}, err
	}
	raw, err := json.Marshal(resp.Result)
	if err != nil {
		return StreamResponse{}, err
	}
	return decodeEvent(raw)
}

func (t *StdioTransport) SendMessageStreaming(ctx context.Context, params a2a.MessageSendParams) (<-chan StreamResponse, <-chan error) {
	return t.streamCall(ctx, "message/stream", params)
}

func (t *StdioTransport) Subscribe(ctx context.Context, taskID string) (<-chan StreamResponse, <-chan error) {
	return t.streamCall(ctx, "tasks/resubscribe", a2a.TaskIDParams{ID: taskID})
}

func (t *StdioTransport) streamCall(ctx context.Context, method string, params any) (<-chan StreamResponse, <-chan error) {
	out := make(chan StreamResponse)
	errCh := make(chan error, 1)

	id := t.nextID.Add(1)
	frames := make(chan json.RawMessage, 8)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		errCh <- errStdioClosed
		close(out)
		close(errCh)
		return out, errCh
	}
	t.streams[id] = frames
	t.mu.Unlock()

	req := jsonrpc.Request{
		Message: jsonrpc.Message{MessageIdentifier: jsonrpc.MessageIdentifier{ID: id}, JSONRPC: "2.0"},
		Method:  method,
		Params:  params,
	}

	go func() {
		defer close(out)
		defer close(errCh)
		defer func() {
			t.mu.Lock()
			delete(t.streams, id)
			t.mu.Unlock()
		}()

		body, err := json.Marshal(req)
		if err != nil {
			errCh <- err
			return
		}
		body = append(body, '\n')
		if _, err := t.stdin.Write(body); err != nil {
			errCh <- &HTTPError{Message: "writing to stdio agent: " + err.Error()}
			return
		}

		for {
			select {
			case raw, ok := <-frames:
				if !ok {
					// Closed from underneath us (Close or a dead child)
					// before the stream reached its final event.
					errCh <- errStdioClosed
					return
				}
				var envelope struct {
					Result json.RawMessage  `json:"result"`
					Error  *jsonrpcStdioErr `json:"error"`
				}
				if err := json.Unmarshal(raw, &envelope); err != nil {
					errCh <- &JSONError{Message: "decoding stdio stream frame", Cause: err}
					return
				}
				if envelope.Error != nil {
					errCh <- &JSONRPCError{Code: envelope.Error.Code, Message: envelope.Error.Message, Data: envelope.Error.Data}
					return
				}
				ev, err := decodeEvent(envelope.Result)
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
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

type jsonrpcStdioErr struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (t *StdioTransport) GetTask(ctx context.Context, params a2a.TaskQueryParams) (*a2a.Task, error) {
	resp, err := t.call(ctx, "tasks/get", params)
	if err != nil {
		return nil, err
	}
	var task a2a.Task
	if err := t.unmarshalResult(resp, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *StdioTransport) ListTasks(ctx context.Context, filter a2a.TaskListFilter) ([]*a2a.Task, string, error) {
	resp, err := t.call(ctx, "tasks/list", filter)
	if err != nil {
		return nil, "", err
	}
	var page struct {
		Tasks         []*a2a.Task `json:"tasks"`
		NextPageToken string      `json:"nextPageToken,omitempty"`
	}
	if err := t.unmarshalResult(resp, &page); err != nil {
		return nil, "", err
	}
	return page.Tasks, page.NextPageToken, nil
}

func (t *StdioTransport) CancelTask(ctx context.Context, params a2a.TaskIDParams) (*a2a.Task, error) {
	resp, err := t.call(ctx, "tasks/cancel", params)
	if err != nil {
		return nil, err
	}
	var task a2a.Task
	if err := t.unmarshalResult(resp, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *StdioTransport) SetTaskCallback(ctx context.Context, cfg a2a.TaskPushNotificationConfig) (a2a.TaskPushNotificationConfig, error) {
	resp, err := t.call(ctx, "tasks/pushNotificationConfig/set", cfg)
	if err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	var out a2a.TaskPushNotificationConfig
	if err := t.unmarshalResult(resp, &out); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return out, nil
}

func (t *StdioTransport) GetTaskCallback(ctx context.Context, taskID, configID string) (a2a.TaskPushNotificationConfig, error) {
	resp, err := t.call(ctx, "tasks/pushNotificationConfig/get", map[string]string{"id": taskID, "pushNotificationConfigId": configID})
	if err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	var out a2a.TaskPushNotificationConfig
	if err := t.unmarshalResult(resp, &out); err != nil {
		return a2a.TaskPushNotificationConfig{}, err
	}
	return out, nil
}

func (t *StdioTransport) ListTaskCallbacks(ctx context.Context, taskID string) ([]a2a.PushNotificationConfig, error) {
	resp, err := t.call(ctx, "tasks/pushNotificationConfig/list", map[string]string{"id": taskID})
	if err != nil {
		return nil, err
	}
	var out []a2a.PushNotificationConfig
	if err := t.unmarshalResult(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *StdioTransport) DeleteTaskCallback(ctx context.Context, taskID, configID string) error {
	_, err := t.call(ctx, "tasks/pushNotificationConfig/delete", map[string]string{"id": taskID, "pushNotificationConfigId": configID})
	return err
}

func (t *StdioTransport) GetExtendedCard(ctx context.Context) (*a2a.AgentCard, error) {
	resp, err := t.call(ctx, "agent/authenticatedExtendedCard", nil)
	if err != nil {
		return nil, err
	}
	var card a2a.AgentCard
	if err := t.unmarshalResult(resp, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// failAll marks the transport closed and releases every in-flight call
// and stream: pending response channels close (call reports a
// connection-closed error) and stream frame channels close (streamCall
// reports the same). Idempotent; runs when the read loop ends.
func (t *StdioTransport) failAll() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	pending := t.pending
	streams := t.streams
	t.pending = make(map[int64]chan jsonrpc.RPCResponse)
	t.streams = make(map[int64]chan json.RawMessage)
	t.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	for _, ch := range streams {
		close(ch)
	}
}

// Close tears the subprocess down: stdin EOF plus SIGTERM first, then
// SIGKILL if the child hasn't exited within terminateTimeout. The read
// loop observes stdout closing and fails whatever was still in flight.
func (t *StdioTransport) Close() error {
	_ = t.stdin.Close()

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	if t.cmd.Process != nil {
		_ = t.cmd.Process.Signal(syscall.SIGTERM)
	}

	select {
	case <-done:
	case <-time.After(terminateTimeout):
		if t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		<-done
	}
	return nil
}
