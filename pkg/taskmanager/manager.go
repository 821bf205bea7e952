// Package taskmanager folds the Event stream produced by an AgentExecutor
// into durable Task snapshots, serializing concurrent folds per task id.
package taskmanager

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/a2a-go/pkg/a2a"
	"github.com/theapemachine/a2a-go/pkg/stores"
)

// Manager folds Events into Task state and persists the result via a
// stores.TaskStore. One Manager is shared by every in-flight task; folding
// for a given task id is serialized with a per-id mutex pulled from a
// sync.Map, so unrelated tasks never contend.
type Manager struct {
	store  TaskStoreWriter
	locks  sync.Map // taskID -> *sync.Mutex
	logger *log.Logger
}

// TaskStoreWriter is the subset of stores.TaskStore the manager needs; kept
// narrow so tests can supply a stub without implementing List/Delete.
type TaskStoreWriter interface {
	Save(ctx context.Context, task *a2a.Task) error
	Get(ctx context.Context, id string) (*a2a.Task, error)
}

func New(store TaskStoreWriter) *Manager {
	return &Manager{store: store, logger: log.Default().WithPrefix("taskmanager")}
}

func (m *Manager) lockFor(taskID string) *sync.Mutex {
	l, _ := m.locks.LoadOrStore(taskID, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// EnsureTask returns the existing task for msg's TaskID (if set), or
// creates a fresh one owned by `owner` in a new context.
func (m *Manager) EnsureTask(ctx context.Context, msg a2a.Message, owner string) (*a2a.Task, error) {
	if msg.TaskID != nil {
		return m.store.Get(ctx, *msg.TaskID)
	}

	contextID := ""
	if msg.ContextID != nil {
		contextID = *msg.ContextID
	}
	task := a2a.NewTask(contextID, owner)
	task.AppendHistory(msg)
	if err := m.store.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// Fold applies a single Event to its task's persisted state and returns the
// resulting snapshot. Message events with no associated task are returned
// unfolded (nil task, since there is nothing to persist).
func (m *Manager) Fold(ctx context.Context, ev a2a.Event) (*a2a.Task, error) {
	taskID, ok := ev.TaskID()
	if !ok {
		return nil, nil
	}

	lock := m.lockFor(taskID)
	lock.Lock()
	defer lock.Unlock()

	task, err := m.store.Get(ctx, taskID)
	if err != nil {
		var notFound *stores.ErrNotFound
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// First event for an unseen id: a full Task binds it outright,
		// anything else synthesizes a submitted task to fold into.
		if ev.Kind == "task" {
			task = ev.Task
		} else {
			contextID := ""
			switch ev.Kind {
			case "status-update":
				contextID = ev.StatusUpdate.ContextID
			case "artifact-update":
				contextID = ev.ArtifactUpdate.ContextID
			}
			task = &a2a.Task{
				Kind:      "task",
				ID:        taskID,
				ContextID: contextID,
				Status:    a2a.TaskStatus{State: a2a.TaskStateSubmitted},
			}
		}
	}

	switch ev.Kind {
	case "task":
		// A full snapshot replaces folded state but never the owner the
		// task was created under (the wire form doesn't carry it).
		owner := task.Owner
		task = ev.Task
		if task.Owner == "" {
			task.Owner = owner
		}
	case "status-update":
		if task.ApplyStatus(ev.StatusUpdate.Status, ev.StatusUpdate.Metadata) {
			m.logger.Warn("status-update arrived after terminal state; accepting per protocol",
				"task", taskID, "terminal_state", task.Status.State)
		}
	case "artifact-update":
		task.ApplyArtifact(*ev.ArtifactUpdate)
	}

	if err := m.store.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}
