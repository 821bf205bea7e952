package a2a

import "time"

// TaskState is the task's position in its lifecycle. Terminal states never
// transition further; InputRequired and AuthRequired are the two
// interruptible non-terminal states a client send can break on.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateAuthRequired  TaskState = "auth-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateUnspecified   TaskState = "unspecified"
)

// Terminal reports whether a task in this state can ever change state again.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	default:
		return false
	}
}

// Interruptible reports whether consumption should stop and hand control
// back to the caller without waiting for a terminal state.
func (s TaskState) Interruptible() bool {
	return s == TaskStateInputRequired || s == TaskStateAuthRequired
}

// TaskStatus is the current state plus the message (if any) that produced it.
type TaskStatus struct {
	State     TaskState  `json:"state"`
	Message   *Message   `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Task is the durable, event-folded view of a unit of agent work.
type Task struct {
	Kind      string         `json:"kind"` // "task"
	ID        string         `json:"id"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	History   []Message      `json:"history,omitempty"`
	Artifacts []Artifact     `json:"artifacts,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	// Owner resolves push-notification-config and list-tasks ownership; it
	// is never serialized to clients.
	Owner string `json:"-"`
}

// NewTask creates a fresh task in the submitted state, owned by the given
// identity, for the given context (a new context id if none is supplied).
func NewTask(contextID, owner string) *Task {
	if contextID == "" {
		contextID = newID()
	}
	return &Task{
		Kind:      "task",
		ID:        newID(),
		ContextID: contextID,
		Status:    TaskStatus{State: TaskStateSubmitted},
		Owner:     owner,
	}
}

// LastMessage returns the most recently appended history entry, if any.
func (t *Task) LastMessage() *Message {
	if len(t.History) == 0 {
		return nil
	}
	return &t.History[len(t.History)-1]
}

// AppendHistory records a message in the task's transcript.
func (t *Task) AppendHistory(m Message) {
	t.History = append(t.History, m)
}

// ApplyStatus transitions the task to a new status, appends any embedded
// message to history, and merges metadata last-write-wins per key. It
// reports whether the task was already in a terminal state before this
// call — the caller is expected to log that as a protocol violation
// rather than reject the update (spec: terminal states never revert, but
// a stray post-terminal update is accepted and surfaced, not dropped).
func (t *Task) ApplyStatus(status TaskStatus, metadata map[string]any) (wasTerminal bool) {
	wasTerminal = t.Status.State.Terminal()
	t.Status = status
	if status.Message != nil {
		t.AppendHistory(*status.Message)
	}
	for k, v := range metadata {
		if t.Metadata == nil {
			t.Metadata = make(map[string]any, len(metadata))
		}
		t.Metadata[k] = v
	}
	return wasTerminal
}

// ApplyArtifact folds an artifact chunk into the task's artifact list,
// appending parts when Append is set and the artifact id already exists,
// otherwise replacing/adding it.
func (t *Task) ApplyArtifact(ev TaskArtifactUpdateEvent) {
	for i := range t.Artifacts {
		if t.Artifacts[i].ArtifactID == ev.Artifact.ArtifactID {
			if ev.Append {
				t.Artifacts[i].Parts = append(t.Artifacts[i].Parts, ev.Artifact.Parts...)
			} else {
				t.Artifacts[i] = ev.Artifact
			}
			return
		}
	}
	t.Artifacts = append(t.Artifacts, ev.Artifact)
}

// TaskStatusUpdateEvent reports a status transition during streaming.
type TaskStatusUpdateEvent struct {
	Kind      string         `json:"kind"` // "status-update"
	TaskID    string         `json:"taskId"`
	ContextID string         `json:"contextId"`
	Status    TaskStatus     `json:"status"`
	Final     bool           `json:"final"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
