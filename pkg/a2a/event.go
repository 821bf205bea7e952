package a2a

import (
	"encoding/json"
	"fmt"
)

// Event is the tagged variant produced by an AgentExecutor and carried on an
// EventQueue: exactly one of Task, StatusUpdate, ArtifactUpdate, or Message
// is non-nil, matching Kind.
type Event struct {
	Kind           string
	Task           *Task
	StatusUpdate   *TaskStatusUpdateEvent
	ArtifactUpdate *TaskArtifactUpdateEvent
	Message        *Message
}

// MarshalJSON flattens the active variant to the wire shape every transport
// expects: a single JSON object whose own "kind" field discriminates it
// (matching Task.Kind/TaskStatusUpdateEvent.Kind/etc.), not a boxed
// {"Kind":...,"Task":{...}} envelope.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case "task":
		return json.Marshal(e.Task)
	case "status-update":
		return json.Marshal(e.StatusUpdate)
	case "artifact-update":
		return json.Marshal(e.ArtifactUpdate)
	case "message":
		return json.Marshal(e.Message)
	default:
		return nil, fmt.Errorf("a2a: event has no variant set (kind=%q)", e.Kind)
	}
}

func NewTaskEvent(t *Task) Event { return Event{Kind: "task", Task: t} }

func NewStatusUpdateEvent(ev TaskStatusUpdateEvent) Event {
	return Event{Kind: "status-update", StatusUpdate: &ev}
}

func NewArtifactUpdateEvent(ev TaskArtifactUpdateEvent) Event {
	return Event{Kind: "artifact-update", ArtifactUpdate: &ev}
}

func NewMessageEvent(m *Message) Event { return Event{Kind: "message", Message: m} }

// TaskID returns the task the event belongs to, if any (Message events that
// are not associated with a task return "", false).
func (e Event) TaskID() (string, bool) {
	switch e.Kind {
	case "task":
		return e.Task.ID, true
	case "status-update":
		return e.StatusUpdate.TaskID, true
	case "artifact-update":
		return e.ArtifactUpdate.TaskID, true
	case "message":
		if e.Message.TaskID != nil {
			return *e.Message.TaskID, true
		}
	}
	return "", false
}

// Final reports whether this event closes out a streaming response: either
// a status update whose Final flag is set, or a bare message (the
// "no task was created" reply shape).
func (e Event) Final() bool {
	switch e.Kind {
	case "status-update":
		return e.StatusUpdate.Final
	case "message":
		return true
	default:
		return false
	}
}
