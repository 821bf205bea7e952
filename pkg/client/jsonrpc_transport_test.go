package client

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"context"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

func TestJSONRPCTransportSendMessageDecodesTaskEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"jsonrpc":"2.0","result":{"kind":"task","id":"t1","contextId":"c1","status":{"state":"submitted"}}}`)
	}))
	defer srv.Close()

	tr := NewJSONRPCTransport(srv.URL, nil, nil)
	resp, err := tr.SendMessage(context.Background(), a2a.MessageSendParams{})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if resp.Kind != "task" || resp.Task.ID != "t1" {
		t.Fatalf("expected decoded task event, got %+v", resp)
	}
}

func TestJSONRPCTransportSendMessageTranslatesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"jsonrpc":"2.0","error":{"code":-32001,"message":"Task not found"}}`)
	}))
	defer srv.Close()

	tr := NewJSONRPCTransport(srv.URL, nil, nil)
	_, err := tr.SendMessage(context.Background(), a2a.MessageSendParams{})
	if err == nil {
		t.Fatal("expected an error")
	}
	jsonRPCErr, ok := err.(*JSONRPCError)
	if !ok {
		t.Fatalf("expected *JSONRPCError, got %T: %v", err, err)
	}
	if jsonRPCErr.Code != -32001 {
		t.Fatalf("expected code -32001, got %d", jsonRPCErr.Code)
	}
}

func TestJSONRPCTransportStreamingYieldsFramesUntilFinal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		io.WriteString(w, `data: {"kind":"status-update","taskId":"t1","status":{"state":"working"}}`+"\n\n")
		flusher.Flush()
		io.WriteString(w, `data: {"kind":"status-update","taskId":"t1","status":{"state":"completed"},"final":true}`+"\n\n")
		flusher.Flush()
	}))
	defer srv.Close()

	tr := NewJSONRPCTransport(srv.URL, nil, nil)
	events, errCh := tr.SendMessageStreaming(context.Background(), a2a.MessageSendParams{})

	var got []StreamResponse
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			got = append(got, ev)
		case err := <-errCh:
			if err != nil {
				t.Fatalf("unexpected stream error: %v", err)
			}
		case <-deadline:
			t.Fatal("timed out waiting for streamed events")
		}
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 streamed events, got %d", len(got))
	}
	if got[1].StatusUpdate.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("expected the stream to end on completed, got %+v", got[1])
	}
}

func TestJSONRPCTransportGetTaskRoundTrips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"jsonrpc":"2.0","result":{"kind":"task","id":"t1","contextId":"c1","status":{"state":"working"}}}`)
	}))
	defer srv.Close()

	tr := NewJSONRPCTransport(srv.URL, nil, nil)
	task, err := tr.GetTask(context.Background(), a2a.TaskQueryParams{ID: "t1"})
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.ID != "t1" || task.Status.State != a2a.TaskStateWorking {
		t.Fatalf("expected round-tripped task, got %+v", task)
	}
}
