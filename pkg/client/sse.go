package client

import (
	"bufio"
	"io"
	"strings"
)

// sseFrame is one complete Server-Sent Events message: the accumulated
// "data:" lines (joined by newline, per the SSE spec) plus an optional
// event name.
type sseFrame struct {
	Event string
	Data  string
}

// sseReader accumulates multi-line frames terminated by a blank line,
// ignoring ":"-prefixed comment/keep-alive lines.
type sseReader struct {
	r *bufio.Reader
}

func newSSEReader(body io.Reader) *sseReader {
	return &sseReader{r: bufio.NewReader(body)}
}

// Next blocks for the next complete frame, returning io.EOF when the
// stream closes cleanly.
func (s *sseReader) Next() (sseFrame, error) {
	var frame sseFrame
	var data []string

	for {
		line, err := s.r.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if err != nil {
				if len(data) > 0 {
					frame.Data = strings.Join(data, "\n")
					return frame, nil
				}
				return sseFrame{}, err
			}
			if len(data) > 0 {
				frame.Data = strings.Join(data, "\n")
				return frame, nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive, ignore
		case strings.HasPrefix(line, "event:"):
			frame.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}

		if err != nil {
			if len(data) > 0 {
				frame.Data = strings.Join(data, "\n")
				return frame, nil
			}
			return sseFrame{}, err
		}
	}
}
