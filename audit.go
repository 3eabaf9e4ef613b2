package portalAuth

import (
	"context"
	"io"

	"github.com/MrEthical07/portalAuth/internal/audit"
	"github.com/google/uuid"
)

// AuditEvent is one session lifecycle record. Tokens are never included.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Manager's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink discards events.
type NoOpSink = audit.NoOpSink

// ChannelSink hands events to a reader through a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// Audit event types.
const (
	AuditLogin                   = audit.EventLogin
	AuditLogout                  = audit.EventLogout
	AuditRefresh                 = audit.EventRefresh
	AuditProfile                 = audit.EventProfile
	AuditSessionRestored         = audit.EventRestored
	AuditSessionRestoreDiscarded = audit.EventRestoreDiscarded
	AuditUnauthorized            = audit.EventUnauthorized
)

// NewChannelSink returns a sink whose Events channel holds up to buffer
// events (at least one).
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing each event to w as one JSON
// line. Writes are serialised.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

func (m *Manager) emitAudit(ctx context.Context, eventType audit.EventType, userID, username string, success bool, err error, metadata map[string]string) {
	if m == nil || m.audit == nil {
		return
	}
	ev := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: m.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Username:  username,
		Success:   success,
		Metadata:  metadata,
	}
	if err != nil {
		ev.Error = KindOf(err).String()
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		if ev.Metadata == nil {
			ev.Metadata = map[string]string{}
		}
		ev.Metadata["request_id"] = rid
	}
	m.audit.Emit(ctx, ev)
}

// AuditDropped returns the number of audit events lost to backpressure.
func (m *Manager) AuditDropped() uint64 {
	if m == nil {
		return 0
	}
	return m.audit.Dropped()
}
