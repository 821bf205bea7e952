package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/executor"
	"github.com/theapemachine/a2a-go/pkg/push"
	"github.com/theapemachine/a2a-go/pkg/stores"
)

func newHandler(t *testing.T, exec executor.AgentExecutor, streaming bool) *Handler {
	t.Helper()
	card := a2a.AgentCard{
		Name:                "test-agent",
		DefaultInputModes:   []string{"text"},
		DefaultOutputModes:  []string{"text"},
		Capabilities:        a2a.AgentCapabilities{Streaming: streaming, PushNotifications: true},
	}
	store := stores.NewInMemoryTaskStore()
	pushStore := push.NewInMemoryConfigStore()
	h := New(card, exec, store, pushStore, nil)
	h.PollInterval = 5 * time.Millisecond
	return h
}

func textMessage(t *testing.T, text string) a2a.Message {
	t.Helper()
	m, err := a2a.NewTextMessage(a2a.RoleUser, text)
	if err != nil {
		t.Fatalf("building message: %v", err)
	}
	return *m
}

// S1 — Simple blocking send: submitted -> working -> artifact -> completed;
// the handler must return the final Task carrying the echoed artifact.
func TestOnMessageSendBlockingReturnsCompletedTask(t *testing.T) {
	exec := executor.NewEchoExecutor()
	exec.WorkDelay = 0
	h := newHandler(t, exec, true)

	cc := &a2a.ServerCallContext{}
	task, msg, err := h.OnMessageSend(context.Background(), textMessage(t, "Run agent"), a2a.MessageSendConfiguration{Blocking: true}, cc)
	if err != nil {
		t.Fatalf("OnMessageSend: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected a task response, got standalone message %+v", msg)
	}
	if task.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("expected completed task, got %s", task.Status.State)
	}
	if len(task.Artifacts) != 1 || task.Artifacts[0].Parts[0].Text != "Run agent" {
		t.Fatalf("expected echoed artifact, got %+v", task.Artifacts)
	}
}

func TestOnMessageSendRejectsIncompatibleOutputModes(t *testing.T) {
	exec := executor.NewEchoExecutor()
	h := newHandler(t, exec, true)

	cc := &a2a.ServerCallContext{}
	_, _, err := h.OnMessageSend(context.Background(), textMessage(t, "hi"), a2a.MessageSendConfiguration{
		Blocking:            true,
		AcceptedOutputModes: []string{"video"},
	}, cc)
	if err == nil {
		t.Fatal("expected a content-type-not-supported error")
	}
}

// S2 — Streaming send with artifact: the stream yields every folded event,
// opening with the task snapshot and ending on the completed status.
func TestOnMessageSendStreamYieldsAllEvents(t *testing.T) {
	exec := executor.NewEchoExecutor()
	exec.WorkDelay = 0
	h := newHandler(t, exec, true)

	cc := &a2a.ServerCallContext{}
	events, err := h.OnMessageSendStream(context.Background(), textMessage(t, "stream me"), a2a.MessageSendConfiguration{}, cc)
	if err != nil {
		t.Fatalf("OnMessageSendStream: %v", err)
	}

	var seen []a2a.Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				goto done
			}
			seen = append(seen, ev)
		case <-deadline:
			t.Fatal("timed out waiting for stream to complete")
		}
	}
done:
	if len(seen) != 4 {
		t.Fatalf("expected 4 events (task, working, artifact, completed), got %d", len(seen))
	}
	if seen[0].Kind != "task" {
		t.Fatalf("expected first event to be a task snapshot, got %s", seen[0].Kind)
	}
	last := seen[len(seen)-1]
	if last.Kind != "status-update" || last.StatusUpdate.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("expected stream to end on completed status, got %+v", last)
	}
}

func TestOnMessageSendStreamUnsupportedWhenCardDoesNotAdvertiseStreaming(t *testing.T) {
	h := newHandler(t, executor.NewEchoExecutor(), false)
	cc := &a2a.ServerCallContext{}
	_, err := h.OnMessageSendStream(context.Background(), textMessage(t, "hi"), a2a.MessageSendConfiguration{}, cc)
	if err == nil {
		t.Fatal("expected unsupported-operation error when streaming capability is off")
	}
}

func TestHandlerInterruptionThenResubscribe(t *testing.T) {
	// This exercises S3 through scriptedExecutor, which pushes its events
	// straight onto the *queue.EventQueue that AgentExecutor.Execute
	// receives, and the handler's queue/aggregator plumbing.
	exec := newScriptedExecutor()
	h := newHandler(t, exec, true)
	cc := &a2a.ServerCallContext{}

	task, msg, err := h.OnMessageSend(context.Background(), textMessage(t, "need input"), a2a.MessageSendConfiguration{Blocking: true}, cc)
	if err != nil {
		t.Fatalf("OnMessageSend: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected a task, got message %+v", msg)
	}
	if task.Status.State != a2a.TaskStateInputRequired {
		t.Fatalf("expected input_required, got %s", task.Status.State)
	}

	// The queue must still be registered so a resubscribe can tap it.
	events, err := h.OnSubscribe(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("OnSubscribe: %v", err)
	}
	first := <-events
	if first.Kind != "task" || first.Task.Status.State != a2a.TaskStateInputRequired {
		t.Fatalf("expected first subscribe event to be the current snapshot, got %+v", first)
	}

	// A second send on the interrupted task must deliver the follow-up
	// into the existing context, not spawn a second execute against the
	// already-running producer.
	followUp := textMessage(t, "here is the key")
	followUp.TaskID = &task.ID
	type sendResult struct {
		task *a2a.Task
		err  error
	}
	resumed := make(chan sendResult, 1)
	go func() {
		second, _, err := h.OnMessageSend(context.Background(), followUp, a2a.MessageSendConfiguration{Blocking: true}, cc)
		resumed <- sendResult{task: second, err: err}
	}()

	time.Sleep(20 * time.Millisecond)
	exec.resume()

	var second sendResult
	select {
	case second = <-resumed:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the second send to return")
	}
	if second.err != nil {
		t.Fatalf("second OnMessageSend: %v", second.err)
	}
	if second.task.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("expected second send to return the completed task, got %s", second.task.Status.State)
	}
	if got := exec.executes.Load(); got != 1 {
		t.Fatalf("expected a single execute across both sends, got %d", got)
	}

	var last a2a.Event
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				break loop
			}
			last = ev
		case <-deadline:
			t.Fatal("timed out waiting for the resumed stream to complete")
		}
	}
	if last.Kind != "status-update" || last.StatusUpdate.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("expected resubscribe stream to end completed, got %+v", last)
	}

	persisted, err := h.Store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("loading persisted task: %v", err)
	}
	var sawFollowUp bool
	for _, m := range persisted.History {
		if m.MessageID == followUp.MessageID {
			sawFollowUp = true
		}
	}
	if !sawFollowUp {
		t.Fatal("expected the follow-up message to be appended to task history")
	}
}

// S4 — Cancel a running task.
func TestOnCancelTaskTransitionsToCanceled(t *testing.T) {
	exec := &blockingExecutor{release: make(chan struct{})}
	h := newHandler(t, exec, true)
	cc := &a2a.ServerCallContext{}

	// Non-blocking send so the producer stays "working" while we cancel it.
	task, _, err := h.OnMessageSend(context.Background(), textMessage(t, "go"), a2a.MessageSendConfiguration{Blocking: false}, cc)
	if err != nil {
		t.Fatalf("OnMessageSend: %v", err)
	}

	canceled, err := h.OnCancelTask(context.Background(), a2a.TaskIDParams{ID: task.ID}, cc)
	if err != nil {
		t.Fatalf("OnCancelTask: %v", err)
	}
	if canceled.Status.State != a2a.TaskStateCanceled {
		t.Fatalf("expected canceled state, got %s", canceled.Status.State)
	}

	if _, err := h.OnCancelTask(context.Background(), a2a.TaskIDParams{ID: task.ID}, cc); err == nil {
		t.Fatal("expected a second cancel on an already-terminal task to fail")
	}
}

// An executor that errors out before emitting anything must still leave
// the caller with a failed terminal task carrying the cause, not a hang
// or an empty response.
func TestOnMessageSendExecutorFailureYieldsFailedTask(t *testing.T) {
	exec := &failingExecutor{err: errors.New("model backend unreachable")}
	h := newHandler(t, exec, true)
	cc := &a2a.ServerCallContext{}

	task, msg, err := h.OnMessageSend(context.Background(), textMessage(t, "go"), a2a.MessageSendConfiguration{Blocking: true}, cc)
	if err != nil {
		t.Fatalf("OnMessageSend: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected a task, got message %+v", msg)
	}
	if task.Status.State != a2a.TaskStateFailed {
		t.Fatalf("expected failed state, got %s", task.Status.State)
	}
	if task.Status.Message == nil || task.Status.Message.Parts[0].Text != "model backend unreachable" {
		t.Fatalf("expected failure cause on the status message, got %+v", task.Status.Message)
	}

	persisted, err := h.Store.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("loading persisted task: %v", err)
	}
	if persisted.Status.State != a2a.TaskStateFailed {
		t.Fatalf("expected persisted failed state, got %s", persisted.Status.State)
	}
}

func TestOnGetTaskNotFound(t *testing.T) {
	h := newHandler(t, executor.NewEchoExecutor(), true)
	_, err := h.OnGetTask(context.Background(), a2a.TaskQueryParams{ID: "does-not-exist"})
	if err == nil {
		t.Fatal("expected task-not-found error")
	}
}

func TestOnListTasksPaginationRoundTrip(t *testing.T) {
	exec := executor.NewEchoExecutor()
	exec.WorkDelay = 0
	h := newHandler(t, exec, true)
	cc := &a2a.ServerCallContext{}

	for i := 0; i < 5; i++ {
		if _, _, err := h.OnMessageSend(context.Background(), textMessage(t, "x"), a2a.MessageSendConfiguration{Blocking: true}, cc); err != nil {
			t.Fatalf("seeding task %d: %v", i, err)
		}
	}

	page, err := h.OnListTasks(context.Background(), a2a.TaskListFilter{PageSize: 2}, cc)
	if err != nil {
		t.Fatalf("OnListTasks: %v", err)
	}
	if len(page.Tasks) != 2 {
		t.Fatalf("expected page size 2, got %d", len(page.Tasks))
	}
	if page.NextPageToken == "" {
		t.Fatal("expected a next page token since more tasks remain")
	}

	page2, err := h.OnListTasks(context.Background(), a2a.TaskListFilter{PageSize: 2, PageToken: page.NextPageToken}, cc)
	if err != nil {
		t.Fatalf("OnListTasks page 2: %v", err)
	}
	if len(page2.Tasks) != 2 {
		t.Fatalf("expected second page size 2, got %d", len(page2.Tasks))
	}
	for _, t1 := range page.Tasks {
		for _, t2 := range page2.Tasks {
			if t1.ID == t2.ID {
				t.Fatalf("expected disjoint pages, found %s in both", t1.ID)
			}
		}
	}
}

func TestOnListTasksInvalidPageTokenErrors(t *testing.T) {
	h := newHandler(t, executor.NewEchoExecutor(), true)
	cc := &a2a.ServerCallContext{}
	_, err := h.OnListTasks(context.Background(), a2a.TaskListFilter{PageToken: "!!!not-base64!!!"}, cc)
	if err == nil {
		t.Fatal("expected an error for an invalid page token")
	}
}

func TestGetAuthenticatedExtendedCardNotConfigured(t *testing.T) {
	h := newHandler(t, executor.NewEchoExecutor(), true)
	_, err := h.GetAuthenticatedExtendedCard(context.Background(), &a2a.ServerCallContext{})
	if err == nil {
		t.Fatal("expected AuthenticatedExtendedCardNotConfigured error")
	}
}
