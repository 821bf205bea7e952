package handler

import (
	"context"
	"sync/atomic"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/executor"
	"github.com/theapemachine/a2a-go/pkg/queue"
)

// scriptedExecutor emits input_required, then blocks until
// resume() is called, at which point it emits working -> completed. It
// models an agent that interrupts for client input mid-task and, once
// resumed, runs to completion on the same queue. executes counts Execute
// calls so tests can assert a follow-up send reuses the running producer.
type scriptedExecutor struct {
	resumeCh chan struct{}
	executes atomic.Int32
}

func newScriptedExecutor() *scriptedExecutor {
	return &scriptedExecutor{resumeCh: make(chan struct{})}
}

func (e *scriptedExecutor) resume() {
	close(e.resumeCh)
}

func (e *scriptedExecutor) Execute(ctx context.Context, reqCtx executor.RequestContext, q *queue.EventQueue) error {
	e.executes.Add(1)
	task := reqCtx.Task
	taskID, contextID := task.ID, task.ContextID

	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind: "status-update", TaskID: taskID, ContextID: contextID,
		Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired},
	}))

	select {
	case <-e.resumeCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind: "status-update", TaskID: taskID, ContextID: contextID,
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	}))
	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind: "status-update", TaskID: taskID, ContextID: contextID,
		Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}, Final: true,
	}))
	return nil
}

func (e *scriptedExecutor) Cancel(ctx context.Context, reqCtx executor.RequestContext, q *queue.EventQueue) error {
	return nil
}

// blockingExecutor emits a single working status and then waits on
// release (or cancellation) without ever reaching a terminal state on its
// own, modeling S4: a task that must be stopped via cancel() rather than
// running to natural completion.
type blockingExecutor struct {
	release chan struct{}
}

func (e *blockingExecutor) Execute(ctx context.Context, reqCtx executor.RequestContext, q *queue.EventQueue) error {
	task := reqCtx.Task
	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind: "status-update", TaskID: task.ID, ContextID: task.ContextID,
		Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	}))
	select {
	case <-e.release:
	case <-ctx.Done():
	}
	return nil
}

// failingExecutor raises before emitting any event, modeling an agent
// whose producer crashes outright rather than reporting a failed status
// itself.
type failingExecutor struct {
	err error
}

func (e *failingExecutor) Execute(ctx context.Context, reqCtx executor.RequestContext, q *queue.EventQueue) error {
	return e.err
}

func (e *failingExecutor) Cancel(ctx context.Context, reqCtx executor.RequestContext, q *queue.EventQueue) error {
	return e.err
}

func (e *blockingExecutor) Cancel(ctx context.Context, reqCtx executor.RequestContext, q *queue.EventQueue) error {
	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind: "status-update", TaskID: reqCtx.Task.ID, ContextID: reqCtx.Task.ContextID,
		Status: a2a.TaskStatus{State: a2a.TaskStateCanceled}, Final: true,
	}))
	close(e.release)
	return nil
}
