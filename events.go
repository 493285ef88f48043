package authflow

import (
	"context"
	"time"
)

// EventType enumerates supported session lifecycle events.
type EventType string

const (
	EventSessionRestored  EventType = "session.restored"
	EventSessionRefreshed EventType = "session.refreshed"
	EventLoginSuccess     EventType = "auth.login.success"
	EventLogout           EventType = "auth.logout"
	EventRefreshRejected  EventType = "session.refresh.rejected"
	EventSignupSuccess    EventType = "auth.signup.success"
	EventPasswordReset    EventType = "auth.password.reset"
)

// SessionEvent captures audit-friendly information about a lifecycle change.
type SessionEvent struct {
	EventType  EventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// EventSink consumes session events for auditing/telemetry purposes.
type EventSink interface {
	Record(ctx context.Context, event SessionEvent) error
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, event SessionEvent) error

// Record implements EventSink.
func (f EventSinkFunc) Record(ctx context.Context, event SessionEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopEventSink struct{}

func (noopEventSink) Record(context.Context, SessionEvent) error {
	return nil
}

func normalizeEventSink(s EventSink) EventSink {
	if s == nil {
		return noopEventSink{}
	}
	return s
}
