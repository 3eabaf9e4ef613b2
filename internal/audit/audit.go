package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// EventType names a session transition.
type EventType string

const (
	EventLogin    EventType = "login"
	EventLogout   EventType = "logout"
	EventRefresh  EventType = "refresh"
	EventProfile  EventType = "profile"
	EventRestored EventType = "session_restored"
	// EventRestoreDiscarded marks a persisted session dropped as malformed.
	EventRestoreDiscarded EventType = "session_restore_discarded"
	EventUnauthorized     EventType = "unauthorized"
)

// Event is one session lifecycle record. Tokens and passwords never appear
// in it; Error holds an error kind, not a message.
type Event struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType EventType         `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	Username  string            `json:"username,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives events from the dispatcher goroutine.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink hands events to a reader. Emit blocks while the channel is
// full unless ctx ends first.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{events: make(chan Event, max(buffer, 1))}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event { return s.events }

// JSONWriterSink writes JSON lines. Encoding errors drop the event.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONWriterSink{enc: enc}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}
