package domain

import "time"

// MessageRole indicates who authored a message.
type MessageRole string

const (
	RoleCustomer  MessageRole = "customer"
	RoleAssistant MessageRole = "assistant"
	RoleStaff     MessageRole = "staff"
	RoleSystem    MessageRole = "system"
)

// Valid reports whether r is a known role.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleCustomer, RoleAssistant, RoleStaff, RoleSystem:
		return true
	}
	return false
}

// Message is one entry of a session transcript.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	Seq       int64          `json:"seq"`
	Role      MessageRole    `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Transcript is the ordered message history of one session.
type Transcript struct {
	SessionID string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}
