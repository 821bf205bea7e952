package a2a

import "testing"

func TestTaskStateTerminalAndInterruptible(t *testing.T) {
	terminal := []TaskState{TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}

	interruptible := []TaskState{TaskStateInputRequired, TaskStateAuthRequired}
	for _, s := range interruptible {
		if !s.Interruptible() {
			t.Errorf("expected %s to be interruptible", s)
		}
		if s.Terminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}

	if TaskStateWorking.Terminal() || TaskStateWorking.Interruptible() {
		t.Error("expected working to be neither terminal nor interruptible")
	}
}

func TestNewTaskGeneratesIDsAndStartsSubmitted(t *testing.T) {
	task := NewTask("", "alice")
	if task.ID == "" || task.ContextID == "" {
		t.Fatal("expected generated id and context id")
	}
	if task.Status.State != TaskStateSubmitted {
		t.Fatalf("expected submitted state, got %s", task.Status.State)
	}

	task2 := NewTask("existing-ctx", "alice")
	if task2.ContextID != "existing-ctx" {
		t.Fatalf("expected supplied context id to be kept, got %s", task2.ContextID)
	}
}

func TestApplyStatusAppendsEmbeddedMessageAndMergesMetadata(t *testing.T) {
	task := NewTask("", "alice")
	task.Metadata = map[string]any{"a": 1}

	msg, _ := NewTextMessage(RoleAgent, "hi")
	task.ApplyStatus(TaskStatus{State: TaskStateWorking, Message: msg}, map[string]any{"b": 2, "a": 9})

	if task.Status.State != TaskStateWorking {
		t.Fatalf("expected working, got %s", task.Status.State)
	}
	if len(task.History) != 1 {
		t.Fatalf("expected embedded message appended, got %d history entries", len(task.History))
	}
	if task.Metadata["a"] != 9 || task.Metadata["b"] != 2 {
		t.Fatalf("expected last-write-wins metadata merge, got %+v", task.Metadata)
	}
}

func TestApplyStatusReportsPriorTerminality(t *testing.T) {
	task := NewTask("", "alice")
	task.Status = TaskStatus{State: TaskStateCompleted}

	wasTerminal := task.ApplyStatus(TaskStatus{State: TaskStateWorking}, nil)
	if !wasTerminal {
		t.Fatal("expected ApplyStatus to report the task was already terminal")
	}
	// Accept-and-log policy: the new status is still applied, not dropped.
	if task.Status.State != TaskStateWorking {
		t.Fatalf("expected the new status to apply despite prior terminality, got %s", task.Status.State)
	}
}

func TestApplyArtifactInsertsReplacesAndAppends(t *testing.T) {
	task := NewTask("", "alice")

	task.ApplyArtifact(TaskArtifactUpdateEvent{
		Artifact: Artifact{ArtifactID: "a1", Parts: []Part{{Kind: PartKindText, Text: "v1"}}},
	})
	if len(task.Artifacts) != 1 {
		t.Fatalf("expected one artifact after insert, got %d", len(task.Artifacts))
	}

	task.ApplyArtifact(TaskArtifactUpdateEvent{
		Artifact: Artifact{ArtifactID: "a1", Parts: []Part{{Kind: PartKindText, Text: "v2"}}},
		Append:   false,
	})
	if len(task.Artifacts) != 1 || len(task.Artifacts[0].Parts) != 1 || task.Artifacts[0].Parts[0].Text != "v2" {
		t.Fatalf("expected replace to overwrite parts, got %+v", task.Artifacts)
	}

	task.ApplyArtifact(TaskArtifactUpdateEvent{
		Artifact: Artifact{ArtifactID: "a1", Parts: []Part{{Kind: PartKindText, Text: "v3"}}},
		Append:   true,
	})
	if len(task.Artifacts) != 1 || len(task.Artifacts[0].Parts) != 2 {
		t.Fatalf("expected append to accumulate parts, got %+v", task.Artifacts[0].Parts)
	}

	task.ApplyArtifact(TaskArtifactUpdateEvent{
		Artifact: Artifact{ArtifactID: "a2", Parts: []Part{{Kind: PartKindText, Text: "other"}}},
	})
	if len(task.Artifacts) != 2 {
		t.Fatalf("expected a distinct artifact id to be added separately, got %d", len(task.Artifacts))
	}
}
