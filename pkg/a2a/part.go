package a2a

import (
	"github.com/cohesivestack/valgo"
	"github.com/google/uuid"
)

// PartKind discriminates the payload carried by a Part.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindFile PartKind = "file"
	PartKindData PartKind = "data"
)

// FileContent is either inline base64 bytes or a remote URI, never both.
type FileContent struct {
	Name     *string `json:"name,omitempty"`
	MimeType *string `json:"mimeType,omitempty"`
	Bytes    *string `json:"bytes,omitempty"`
	URI      *string `json:"uri,omitempty"`
}

// Part is a single piece of a Message or Artifact. Only the field matching
// Kind is populated; the others stay zero.
type Part struct {
	Kind     PartKind       `json:"kind"`
	Text     string         `json:"text,omitempty"`
	File     *FileContent   `json:"file,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewTextPart builds a text Part, validating that text is non-blank.
func NewTextPart(text string) (Part, error) {
	v := valgo.Is(valgo.String(text, "text").Not().Blank())
	if !v.Valid() {
		return Part{}, v.Error()
	}
	return Part{Kind: PartKindText, Text: text}, nil
}

// NewFilePart builds a file Part from either inline bytes or a URI.
func NewFilePart(file FileContent) (Part, error) {
	v := valgo.Is(valgo.Bool(file.Bytes != nil || file.URI != nil, "file").True())
	if !v.Valid() {
		return Part{}, v.Error()
	}
	return Part{Kind: PartKindFile, File: &file}, nil
}

// NewDataPart builds a structured-data Part, validating it is non-empty.
func NewDataPart(data map[string]any) (Part, error) {
	v := valgo.Is(valgo.Int(len(data), "data").GreaterThan(0))
	if !v.Valid() {
		return Part{}, v.Error()
	}
	return Part{Kind: PartKindData, Data: data}, nil
}

func newID() string {
	return uuid.New().String()
}
