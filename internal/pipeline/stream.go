package pipeline

import (
	"context"
)

// Stream event types.
const (
	EventStart    = "start"
	EventContent  = "content"
	EventComplete = "complete"
	EventError    = "error"
)

// streamChunkRunes is the answer slice size per content event.
const streamChunkRunes = 48

// StreamEvent is one element of a pipeline run's event stream.
type StreamEvent struct {
	Type     string    `json:"type"`
	Content  string    `json:"content,omitempty"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// ChatStream runs the request and emits its progress as a finite event
// stream: start, zero or more content chunks, then complete (with the
// full response) or error. The channel is closed when the stream ends.
func (c *Coordinator) ChatStream(ctx context.Context, req Request) <-chan StreamEvent {
	events := make(chan StreamEvent)

	go func() {
		defer close(events)

		send := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(StreamEvent{Type: EventStart}) {
			return
		}

		resp, err := c.Process(ctx, req)
		if err != nil {
			send(StreamEvent{Type: EventError, Error: err.Error()})
			return
		}

		runes := []rune(resp.Answer)
		for i := 0; i < len(runes); i += streamChunkRunes {
			end := i + streamChunkRunes
			if end > len(runes) {
				end = len(runes)
			}
			if !send(StreamEvent{Type: EventContent, Content: string(runes[i:end])}) {
				return
			}
		}

		send(StreamEvent{Type: EventComplete, Response: resp})
	}()

	return events
}
