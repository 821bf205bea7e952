package a2a

import "testing"

func TestNewTextPartRejectsBlankText(t *testing.T) {
	if _, err := NewTextPart(""); err == nil {
		t.Fatal("expected an error for empty text")
	}
	if _, err := NewTextPart("hello"); err != nil {
		t.Fatalf("expected valid text to succeed, got %v", err)
	}
}

func TestNewFilePartRequiresBytesOrURI(t *testing.T) {
	if _, err := NewFilePart(FileContent{}); err == nil {
		t.Fatal("expected an error when neither bytes nor uri is set")
	}

	b := "aGVsbG8="
	if _, err := NewFilePart(FileContent{Bytes: &b}); err != nil {
		t.Fatalf("expected bytes-only file part to succeed, got %v", err)
	}

	u := "https://example.com/f"
	if _, err := NewFilePart(FileContent{URI: &u}); err != nil {
		t.Fatalf("expected uri-only file part to succeed, got %v", err)
	}
}

func TestNewDataPartRejectsEmptyMap(t *testing.T) {
	if _, err := NewDataPart(map[string]any{}); err == nil {
		t.Fatal("expected an error for an empty data map")
	}
	if _, err := NewDataPart(map[string]any{"k": "v"}); err != nil {
		t.Fatalf("expected non-empty data to succeed, got %v", err)
	}
}

func TestNewMessageRejectsEmptyParts(t *testing.T) {
	if _, err := NewMessage(RoleUser, nil); err == nil {
		t.Fatal("expected an error for a message with no parts")
	}
}

func TestNewTextMessageBuildsSinglePartMessage(t *testing.T) {
	m, err := NewTextMessage(RoleUser, "hello")
	if err != nil {
		t.Fatalf("NewTextMessage: %v", err)
	}
	if len(m.Parts) != 1 || m.Parts[0].Text != "hello" {
		t.Fatalf("expected a single text part, got %+v", m.Parts)
	}
	if m.MessageID == "" {
		t.Fatal("expected a generated message id")
	}
}
