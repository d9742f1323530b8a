package domain

import "time"

// SessionStatus is the conversation half of the hand-off state machine.
type SessionStatus string

const (
	SessionActive          SessionStatus = "active"
	SessionWaitingForStaff SessionStatus = "waiting_for_staff"
	SessionWithStaff       SessionStatus = "with_staff"
	SessionResolved        SessionStatus = "resolved"
	SessionEscalated       SessionStatus = "escalated"
)

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionActive, SessionWaitingForStaff, SessionWithStaff, SessionResolved, SessionEscalated:
		return true
	}
	return false
}

// Session is a customer conversation.
type Session struct {
	ID              string            `json:"id"`
	Status          SessionStatus     `json:"status"`
	CustomerContext map[string]string `json:"customerContext,omitempty"`
	AssignedStaffID string            `json:"assignedStaffId,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	ResolvedAt      *time.Time        `json:"resolvedAt,omitempty"`
}
