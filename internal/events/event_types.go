package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/Stagnxzione/ra-userbot/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDraftStarted       EventType = "draft_started"
	EventTicketFiled        EventType = "ticket_filed"
	EventSubRecordFiled     EventType = "subrecord_filed"
	EventStatusMarked       EventType = "status_marked"
	EventDispatcherNotified EventType = "dispatcher_notified"
	EventDraftClosed        EventType = "draft_closed"
)

// AllEventTypes lists every type the lifecycle publishes.
var AllEventTypes = []EventType{
	EventDraftStarted,
	EventTicketFiled,
	EventSubRecordFiled,
	EventStatusMarked,
	EventDispatcherNotified,
	EventDraftClosed,
}

// Actor identifies the chat user behind an event.
type Actor struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
}

// Event represents a lifecycle event.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	DraftID   string      `json:"draft_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New builds an event for the draft with a fresh id.
func New(eventType EventType, draft *domain.Draft, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		DraftID:   draft.ID,
		Actor:     Actor{UserID: draft.UserID, Username: draft.Username},
		Timestamp: at,
		Payload:   payload,
	}
}

// TicketFiledPayload payload.
type TicketFiledPayload struct {
	TrackerKey string `json:"tracker_key"`
	Summary    string `json:"summary"`
}

// SubRecordFiledPayload payload.
type SubRecordFiledPayload struct {
	Kind       domain.SubRecordKind `json:"kind"`
	ParentKey  string               `json:"parent_key"`
	TrackerKey string               `json:"tracker_key"`
	Attempt    string               `json:"attempt"`
}

// StatusMarkedPayload payload.
type StatusMarkedPayload struct {
	Status domain.StatusKey `json:"status"`
	Repeat bool             `json:"repeat"`
}

// DispatcherNotifiedPayload payload.
type DispatcherNotifiedPayload struct {
	ChatID     string `json:"chat_id"`
	WithInvite bool   `json:"with_invite"`
}
