// Package card implements agent-card canonical-JSON serialization and
// detached-JWS signing/verification, used to let a client verify a card
// wasn't tampered with in transit.
package card

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/theapemachine/a2a-go/pkg/a2a"
)

// Canonicalize produces a deterministic JSON encoding of the card with its
// Signatures field stripped (signatures cover everything else), object keys
// sorted, and no insignificant whitespace — a JCS-style (RFC 8785)
// canonical form hand-rolled over encoding/json, since no RFC-8785 library
// appears anywhere in the example pack.
func Canonicalize(c a2a.AgentCard) ([]byte, error) {
	unsigned := c
	unsigned.Signatures = nil

	raw, err := json.Marshal(unsigned)
	if err != nil {
		return nil, err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}
	cleaned, _ := cleanEmpty(generic)

	var buf bytes.Buffer
	if err := writeCanonical(&buf, cleaned); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cleanEmpty recursively drops empty strings, lists, and maps (including
// null) from the tree, while always preserving falsy scalars (0, false).
// It returns the cleaned value and whether the caller should keep it.
func cleanEmpty(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string:
		return val, val != ""
	case map[string]any:
		cleanedMap := make(map[string]any, len(val))
		for k, item := range val {
			if cv, keep := cleanEmpty(item); keep {
				cleanedMap[k] = cv
			}
		}
		return cleanedMap, len(cleanedMap) > 0
	case []any:
		cleanedList := make([]any, 0, len(val))
		for _, item := range val {
			if cv, keep := cleanEmpty(item); keep {
				cleanedList = append(cleanedList, cv)
			}
		}
		return cleanedList, len(cleanedList) > 0
	default:
		// Numbers and booleans (including 0 and false) are always kept.
		return val, true
	}
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')

	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
	}

	return nil
}
