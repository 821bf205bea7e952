package executor

import (
	"context"
	"time"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/queue"
)

// EchoExecutor is a trivial reference implementation that fulfils every
// call by streaming a "working" status, an artifact containing the first
// text part back verbatim, then a completed status — enough to exercise
// the full event pipeline without any real agent logic behind it.
type EchoExecutor struct {
	// WorkDelay simulates processing latency between the working status
	// and the final artifact/completed status. Zero skips the delay.
	WorkDelay time.Duration
}

func NewEchoExecutor() *EchoExecutor {
	return &EchoExecutor{WorkDelay: 200 * time.Millisecond}
}

func firstText(m a2a.Message) string {
	for _, p := range m.Parts {
		if p.Kind == a2a.PartKindText {
			return p.Text
		}
	}
	return ""
}

func (e *EchoExecutor) Execute(ctx context.Context, reqCtx RequestContext, q *queue.EventQueue) error {
	task := reqCtx.Task
	if task == nil {
		task = a2a.NewTask("", "")
	}
	taskID, contextID := task.ID, task.ContextID

	q.Enqueue(a2a.NewTaskEvent(task))
	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind:      "status-update",
		TaskID:    taskID,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateWorking},
	}))

	if e.WorkDelay > 0 {
		select {
		case <-time.After(e.WorkDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	artifact := a2a.NewArtifact("echo", []a2a.Part{{Kind: a2a.PartKindText, Text: firstText(reqCtx.Message)}})
	q.Enqueue(a2a.NewArtifactUpdateEvent(a2a.TaskArtifactUpdateEvent{
		Kind:      "artifact-update",
		TaskID:    taskID,
		ContextID: contextID,
		Artifact:  *artifact,
		LastChunk: true,
	}))

	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind:      "status-update",
		TaskID:    taskID,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateCompleted},
		Final:     true,
	}))
	return nil
}

// Cancel marks the task canceled; the echo executor has no in-flight work
// to interrupt, so this just emits the terminal transition.
func (e *EchoExecutor) Cancel(ctx context.Context, reqCtx RequestContext, q *queue.EventQueue) error {
	taskID, contextID := "", ""
	if reqCtx.Task != nil {
		taskID, contextID = reqCtx.Task.ID, reqCtx.Task.ContextID
	}
	q.Enqueue(a2a.NewStatusUpdateEvent(a2a.TaskStatusUpdateEvent{
		Kind:      "status-update",
		TaskID:    taskID,
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: a2a.TaskStateCanceled},
		Final:     true,
	}))
	return nil
}
