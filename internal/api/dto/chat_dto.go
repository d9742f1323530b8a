package dto

// CreateSessionRequest opens a widget conversation.
type CreateSessionRequest struct {
	CustomerContext map[string]string `json:"customerContext"`
}

// AssignChatRequest payload. An empty StaffID assigns the caller.
type AssignChatRequest struct {
	StaffID string `json:"staffId"`
}

// TransferChatRequest payload.
type TransferChatRequest struct {
	ToStaffID string `json:"toStaffId"`
}
