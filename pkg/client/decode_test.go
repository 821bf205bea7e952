package client

import "testing"

func TestDecodeEventTask(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"kind":"task","id":"t1","contextId":"c1","status":{"state":"submitted"}}`))
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if ev.Kind != "task" || ev.Task == nil || ev.Task.ID != "t1" {
		t.Fatalf("expected decoded task event, got %+v", ev)
	}
}

func TestDecodeEventStatusUpdate(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"kind":"status-update","taskId":"t1","status":{"state":"working"}}`))
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if ev.Kind != "status-update" || ev.StatusUpdate == nil || ev.StatusUpdate.TaskID != "t1" {
		t.Fatalf("expected decoded status-update event, got %+v", ev)
	}
}

func TestDecodeEventArtifactUpdate(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"kind":"artifact-update","taskId":"t1","artifact":{"artifactId":"a1","parts":[]}}`))
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if ev.Kind != "artifact-update" || ev.ArtifactUpdate == nil || ev.ArtifactUpdate.Artifact.ArtifactID != "a1" {
		t.Fatalf("expected decoded artifact-update event, got %+v", ev)
	}
}

func TestDecodeEventMessage(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"kind":"message","messageId":"m1","role":"agent","parts":[]}`))
	if err != nil {
		t.Fatalf("decodeEvent: %v", err)
	}
	if ev.Kind != "message" || ev.Message == nil || ev.Message.MessageID != "m1" {
		t.Fatalf("expected decoded message event, got %+v", ev)
	}
}

func TestDecodeEventUnknownKindErrors(t *testing.T) {
	if _, err := decodeEvent([]byte(`{"kind":"bogus"}`)); err == nil {
		t.Fatal("expected an error for an unrecognized event kind")
	}
}

func TestDecodeEventMalformedJSONErrors(t *testing.T) {
	if _, err := decodeEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}
