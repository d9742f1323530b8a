package domain

import "time"

// StaffRole is an authorization tier. It is not used for routing.
type StaffRole string

const (
	StaffRoleAgent      StaffRole = "agent"
	StaffRoleSupervisor StaffRole = "supervisor"
	StaffRoleAdmin      StaffRole = "admin"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleAgent, StaffRoleSupervisor, StaffRoleAdmin:
		return true
	}
	return false
}

// StaffStatus is the presence status of a staff member.
type StaffStatus string

const (
	StaffStatusOnline  StaffStatus = "online"
	StaffStatusOffline StaffStatus = "offline"
	StaffStatusBusy    StaffStatus = "busy"
	StaffStatusAway    StaffStatus = "away"
)

// Valid reports whether s is a known presence status.
func (s StaffStatus) Valid() bool {
	switch s {
	case StaffStatusOnline, StaffStatusOffline, StaffStatusBusy, StaffStatusAway:
		return true
	}
	return false
}

// StaffMember models a support agent and their live load.
// 0 <= CurrentChatCount <= MaxConcurrentChats always holds.
type StaffMember struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Email              string      `json:"email"`
	PasswordHash       string      `json:"passwordHash,omitempty"`
	Role               StaffRole   `json:"role"`
	Status             StaffStatus `json:"status"`
	MaxConcurrentChats int         `json:"maxConcurrentChats"`
	CurrentChatCount   int         `json:"currentChatCount"`
	LastActive         time.Time   `json:"lastActive"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          time.Time   `json:"updatedAt"`
}

// Available reports whether the staff member can take another chat.
func (s *StaffMember) Available() bool {
	return s.Status == StaffStatusOnline && s.CurrentChatCount < s.MaxConcurrentChats
}

// Public returns a copy safe to send to clients.
func (s StaffMember) Public() StaffMember {
	s.PasswordHash = ""
	return s
}
