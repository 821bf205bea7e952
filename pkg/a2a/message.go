package a2a

import "github.com/cohesivestack/valgo"

// Role identifies who authored a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message is a single turn exchanged between a client and an agent.
type Message struct {
	Kind             string         `json:"kind"` // always "message", mirrors Event's discriminator
	MessageID        string         `json:"messageId"`
	Role             Role           `json:"role"`
	Parts            []Part         `json:"parts"`
	ContextID        *string        `json:"contextId,omitempty"`
	TaskID           *string        `json:"taskId,omitempty"`
	ReferenceTaskIDs []string       `json:"referenceTaskIds,omitempty"`
	Extensions       []string       `json:"extensions,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// NewMessage builds a Message with a fresh id, validating it carries parts.
func NewMessage(role Role, parts []Part) (*Message, error) {
	v := valgo.Is(valgo.Int(len(parts), "parts").GreaterThan(0))
	if !v.Valid() {
		return nil, v.Error()
	}
	return &Message{
		Kind:      "message",
		MessageID: newID(),
		Role:      role,
		Parts:     parts,
	}, nil
}

// NewTextMessage is a convenience constructor for the common single
// text-part case (user prompts, simple agent replies).
func NewTextMessage(role Role, text string) (*Message, error) {
	part, err := NewTextPart(text)
	if err != nil {
		return nil, err
	}
	return NewMessage(role, []Part{part})
}

// WithTaskID associates the message with an existing task/context.
func (m *Message) WithTaskID(taskID, contextID string) *Message {
	m.TaskID = &taskID
	m.ContextID = &contextID
	return m
}
