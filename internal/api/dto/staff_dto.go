package dto

import (
	"time"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries an issued staff token.
type AuthResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Staff     domain.StaffMember `json:"staff"`
}

// StaffStatusRequest payload for presence changes.
type StaffStatusRequest struct {
	Status domain.StaffStatus `json:"status"`
}

// CreateStaffRequest payload for admin provisioning.
type CreateStaffRequest struct {
	Name               string           `json:"name"`
	Email              string           `json:"email"`
	Password           string           `json:"password"`
	Role               domain.StaffRole `json:"role"`
	MaxConcurrentChats int              `json:"maxConcurrentChats"`
}
