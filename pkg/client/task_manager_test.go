package client

import (
	"testing"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

func TestClientTaskManagerFoldsStatusAndArtifactUpdates(t *testing.T) {
	m := NewTaskManager()

	task := a2a.NewTask("ctx-1", "")
	_, err := m.Fold(StreamResponse{Kind: "task", Task: task})
	if err != nil {
		t.Fatalf("fold task: %v", err)
	}

	folded, err := m.Fold(StreamResponse{Kind: "status-update", StatusUpdate: &a2a.TaskStatusUpdateEvent{
		TaskID: task.ID, Status: a2a.TaskStatus{State: a2a.TaskStateWorking},
	}})
	if err != nil {
		t.Fatalf("fold status-update: %v", err)
	}
	if folded.Status.State != a2a.TaskStateWorking {
		t.Fatalf("expected working, got %s", folded.Status.State)
	}

	folded, err = m.Fold(StreamResponse{Kind: "artifact-update", ArtifactUpdate: &a2a.TaskArtifactUpdateEvent{
		TaskID: task.ID, Artifact: a2a.Artifact{ArtifactID: "a1", Parts: []a2a.Part{{Kind: a2a.PartKindText, Text: "x"}}},
	}})
	if err != nil {
		t.Fatalf("fold artifact-update: %v", err)
	}
	if len(folded.Artifacts) != 1 {
		t.Fatalf("expected one artifact, got %+v", folded.Artifacts)
	}
	if m.Task().ID != task.ID {
		t.Fatalf("expected Task() to return the current snapshot")
	}
}

func TestClientTaskManagerRejectsMessageAfterTask(t *testing.T) {
	m := NewTaskManager()
	task := a2a.NewTask("ctx-1", "")
	if _, err := m.Fold(StreamResponse{Kind: "task", Task: task}); err != nil {
		t.Fatalf("fold task: %v", err)
	}

	_, err := m.Fold(StreamResponse{Kind: "message", Message: &a2a.Message{MessageID: "m1"}})
	if err == nil {
		t.Fatal("expected InvalidStateError for a message arriving after a task")
	}
	if _, ok := err.(*InvalidStateError); !ok {
		t.Fatalf("expected *InvalidStateError, got %T", err)
	}
}

func TestClientTaskManagerAllowsLeadingStandaloneMessage(t *testing.T) {
	m := NewTaskManager()
	folded, err := m.Fold(StreamResponse{Kind: "message", Message: &a2a.Message{MessageID: "m1"}})
	if err != nil {
		t.Fatalf("expected a leading standalone message to be allowed, got %v", err)
	}
	if folded != nil {
		t.Fatalf("expected nil task for a standalone message, got %+v", folded)
	}
}

func TestClientTaskManagerRejectsTaskIDChangeMidStream(t *testing.T) {
	m := NewTaskManager()
	if _, err := m.Fold(StreamResponse{Kind: "task", Task: &a2a.Task{ID: "t1"}}); err != nil {
		t.Fatalf("fold first task: %v", err)
	}
	_, err := m.Fold(StreamResponse{Kind: "task", Task: &a2a.Task{ID: "t2"}})
	if err == nil {
		t.Fatal("expected an error when the task id changes mid-stream")
	}
}
