package client

import (
	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// TaskManager is the client-side twin of pkg/taskmanager.Manager: it folds
// a sequence of StreamResponse variants into a single in-memory Task
// snapshot, with no store behind it — the caller (BaseClient) owns the
// lifetime of one TaskManager per send/subscribe call.
type TaskManager struct {
	task    *a2a.Task
	sawTask bool
}

func NewTaskManager() *TaskManager { return &TaskManager{} }

// Fold applies one StreamResponse, returning the resulting task snapshot
// (nil for a standalone Message) or an error if resp violates the
// event-ordering invariant: a Message arriving after a Task has already
// been observed in this stream.
func (m *TaskManager) Fold(resp StreamResponse) (*a2a.Task, error) {
	switch resp.Kind {
	case "message":
		if m.sawTask {
			return nil, &InvalidStateError{Message: "message event received after a task was already established"}
		}
		return nil, nil

	case "task":
		if m.task != nil && m.task.ID != resp.Task.ID {
			return nil, &InvalidStateError{Message: "task id changed mid-stream"}
		}
		m.sawTask = true
		m.task = resp.Task
		return m.task, nil

	case "status-update":
		m.sawTask = true
		if m.task == nil {
			m.task = &a2a.Task{ID: resp.StatusUpdate.TaskID, ContextID: resp.StatusUpdate.ContextID, Kind: "task"}
		}
		m.task.ApplyStatus(resp.StatusUpdate.Status, resp.StatusUpdate.Metadata)
		return m.task, nil

	case "artifact-update":
		m.sawTask = true
		if m.task == nil {
			m.task = &a2a.Task{ID: resp.ArtifactUpdate.TaskID, ContextID: resp.ArtifactUpdate.ContextID, Kind: "task"}
		}
		m.task.ApplyArtifact(*resp.ArtifactUpdate)
		return m.task, nil
	}

	return m.task, nil
}

// Task returns the current folded snapshot, if any.
func (m *TaskManager) Task() *a2a.Task { return m.task }
