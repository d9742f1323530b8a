package domain

import "time"

// AssignmentStatus is the ledger state machine: assigned -> active -> completed.
type AssignmentStatus string

const (
	AssignmentAssigned  AssignmentStatus = "assigned"
	AssignmentActive    AssignmentStatus = "active"
	AssignmentCompleted AssignmentStatus = "completed"
)

// Terminal reports whether no further transitions are allowed.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentCompleted
}

// Assignment records which staff member owns a session.
type Assignment struct {
	SessionID   string           `json:"sessionId"`
	StaffID     string           `json:"staffId"`
	Status      AssignmentStatus `json:"status"`
	AssignedAt  time.Time        `json:"assignedAt"`
	ActivatedAt *time.Time       `json:"activatedAt,omitempty"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	Transfers   int              `json:"transfers"`
}
