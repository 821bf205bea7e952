package client

import (
	"io"
	"strings"
	"testing"
)

func TestSSEReaderParsesMultiLineDataFrame(t *testing.T) {
	body := "event: message\ndata: line1\ndata: line2\n\n"
	r := newSSEReader(strings.NewReader(body))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if frame.Event != "message" {
		t.Fatalf("expected event name %q, got %q", "message", frame.Event)
	}
	if frame.Data != "line1\nline2" {
		t.Fatalf("expected joined multi-line data, got %q", frame.Data)
	}
}

func TestSSEReaderSkipsCommentLines(t *testing.T) {
	body := ": keep-alive\ndata: hello\n\n"
	r := newSSEReader(strings.NewReader(body))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if frame.Data != "hello" {
		t.Fatalf("expected comment line to be ignored, got %q", frame.Data)
	}
}

func TestSSEReaderReturnsEOFAfterLastFrame(t *testing.T) {
	body := "data: only\n\n"
	r := newSSEReader(strings.NewReader(body))

	if _, err := r.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF once the stream is exhausted, got %v", err)
	}
}

func TestSSEReaderReturnsTrailingFrameWithoutBlankLine(t *testing.T) {
	body := "data: trailing"
	r := newSSEReader(strings.NewReader(body))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("expected the trailing unterminated frame to be returned, got err %v", err)
	}
	if frame.Data != "trailing" {
		t.Fatalf("expected trailing data, got %q", frame.Data)
	}
}
