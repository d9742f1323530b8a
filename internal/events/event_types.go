package events

import (
	"time"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSessionEscalated   EventType = "session_escalated"
	EventChatAssigned       EventType = "chat_assigned"
	EventChatTransferred    EventType = "chat_transferred"
	EventChatCompleted      EventType = "chat_completed"
	EventQueueUpdated       EventType = "queue_updated"
	EventStaffStatusChanged EventType = "staff_status_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	StaffID   string    `json:"staffId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// SessionEscalatedPayload payload.
type SessionEscalatedPayload struct {
	Priority domain.Priority `json:"priority"`
	Trigger  string          `json:"trigger"`
}

// ChatAssignedPayload payload.
type ChatAssignedPayload struct {
	Assignment domain.Assignment `json:"assignment"`
	Automatic  bool              `json:"automatic"`
}

// ChatTransferredPayload payload.
type ChatTransferredPayload struct {
	FromStaffID string `json:"fromStaffId"`
	ToStaffID   string `json:"toStaffId"`
}

// ChatCompletedPayload payload.
type ChatCompletedPayload struct {
	Assignment domain.Assignment `json:"assignment"`
}

// QueueUpdatedPayload payload.
type QueueUpdatedPayload struct {
	Stats domain.QueueStats `json:"stats"`
}

// StaffStatusChangedPayload payload.
type StaffStatusChangedPayload struct {
	OldStatus domain.StaffStatus `json:"oldStatus"`
	NewStatus domain.StaffStatus `json:"newStatus"`
}
