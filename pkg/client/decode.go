package client

import (
	"encoding/json"
	"fmt"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// decodeEvent turns one wire payload — the result of message/send or
// message/stream, or one SSE data frame — into the tagged a2a.Event it
// represents, keyed on its "kind" discriminator.
func decodeEvent(raw []byte) (a2a.Event, error) {
	var probe struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return a2a.Event{}, &JSONError{Message: "decoding event envelope", Cause: err}
	}

	switch probe.Kind {
	case "task":
		var t a2a.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return a2a.Event{}, &JSONError{Message: "decoding task", Cause: err}
		}
		return a2a.NewTaskEvent(&t), nil

	case "message":
		var m a2a.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return a2a.Event{}, &JSONError{Message: "decoding message", Cause: err}
		}
		return a2a.NewMessageEvent(&m), nil

	case "status-update":
		var ev a2a.TaskStatusUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return a2a.Event{}, &JSONError{Message: "decoding status-update", Cause: err}
		}
		return a2a.NewStatusUpdateEvent(ev), nil

	case "artifact-update":
		var ev a2a.TaskArtifactUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return a2a.Event{}, &JSONError{Message: "decoding artifact-update", Cause: err}
		}
		return a2a.NewArtifactUpdateEvent(ev), nil
	}

	return a2a.Event{}, &JSONError{Message: fmt.Sprintf("unknown event kind %q", probe.Kind)}
}
