package models

import "time"

// EventType enumerates session lifecycle transitions published to sinks.
type EventType string

const (
	EventSessionCreated     EventType = "SESSION_CREATED"
	EventSessionRescheduled EventType = "SESSION_RESCHEDULED"
	EventSessionCancelled   EventType = "SESSION_CANCELLED"
	EventMakeupScheduled    EventType = "MAKEUP_SCHEDULED"
	EventSessionCompleted   EventType = "SESSION_COMPLETED"
	EventTemplateExpanded   EventType = "TEMPLATE_EXPANDED"
)

// Event is the record emitted on every successful state transition. Sequence
// is monotonic per engine process; mutations carry both pre- and post-images.
type Event struct {
	Sequence   uint64    `json:"sequence"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	ActorID    string    `json:"actor_id"`
	Session    *Session  `json:"session,omitempty"`
	Previous   *Session  `json:"previous,omitempty"`
	Sessions   []Session `json:"sessions,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	ReplacesID string    `json:"replaces_id,omitempty"`
}
