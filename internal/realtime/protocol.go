package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

// Inbound event names.
const (
	EventStaffAuthenticate = "staff_authenticate"
	EventCustomerJoin      = "customer_join"
	EventSendMessage       = "send_message"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventAssignChat        = "assign_chat"
	EventTransferChat      = "transfer_chat"
	EventCompleteChat      = "complete_chat"
	EventRequestStaff      = "request_staff"
	EventStaffStatusUpdate = "staff_status_update"
	EventCustomerLeave     = "customer_leave"
)

// Outbound event names.
const (
	EventAuthenticated      = "authenticated"
	EventJoined             = "joined"
	EventNewMessage         = "new_message"
	EventStaffJoined        = "staff_joined"
	EventChatAssigned       = "chat_assigned"
	EventChatTransferred    = "chat_transferred"
	EventChatCompleted      = "chat_completed"
	EventQueueUpdated       = "queue_updated"
	EventUserTyping         = "user_typing"
	EventStaffStatusChanged = "staff_status_changed"
	EventError              = "error"
)

// Envelope is the inbound wire frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Frame is the outbound wire frame.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Command is an inbound request. The concrete types below are the only
// implementations; the coordinator has one handler per type.
type Command interface {
	commandName() string
}

type StaffAuthenticate struct {
	Token string `json:"token"`
}

type CustomerJoin struct {
	SessionID string `json:"sessionId"`
}

type SendMessage struct {
	SessionID string             `json:"sessionId"`
	Message   string             `json:"message"`
	Role      domain.MessageRole `json:"role,omitempty"`
}

type Typing struct {
	SessionID string `json:"sessionId"`
	IsTyping  bool   `json:"-"`
}

type AssignChat struct {
	SessionID string `json:"sessionId"`
	StaffID   string `json:"staffId,omitempty"`
}

type TransferChat struct {
	SessionID string `json:"sessionId"`
	ToStaffID string `json:"toStaffId"`
}

type CompleteChat struct {
	SessionID string `json:"sessionId"`
}

type RequestStaff struct {
	SessionID string          `json:"sessionId"`
	Priority  domain.Priority `json:"priority,omitempty"`
}

type StaffStatusUpdate struct {
	Status domain.StaffStatus `json:"status"`
}

type CustomerLeave struct {
	SessionID string `json:"sessionId"`
}

func (StaffAuthenticate) commandName() string { return EventStaffAuthenticate }
func (CustomerJoin) commandName() string      { return EventCustomerJoin }
func (SendMessage) commandName() string       { return EventSendMessage }
func (AssignChat) commandName() string        { return EventAssignChat }
func (TransferChat) commandName() string      { return EventTransferChat }
func (CompleteChat) commandName() string      { return EventCompleteChat }
func (RequestStaff) commandName() string      { return EventRequestStaff }
func (StaffStatusUpdate) commandName() string { return EventStaffStatusUpdate }
func (CustomerLeave) commandName() string     { return EventCustomerLeave }

func (t Typing) commandName() string {
	if t.IsTyping {
		return EventTypingStart
	}
	return EventTypingStop
}

// DecodeCommand parses one inbound frame.
func DecodeCommand(raw []byte) (Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperrors.NewValidationError("malformed frame", nil)
	}

	var cmd Command
	switch env.Event {
	case EventStaffAuthenticate:
		cmd = &StaffAuthenticate{}
	case EventCustomerJoin:
		cmd = &CustomerJoin{}
	case EventSendMessage:
		cmd = &SendMessage{}
	case EventTypingStart:
		cmd = &Typing{IsTyping: true}
	case EventTypingStop:
		cmd = &Typing{}
	case EventAssignChat:
		cmd = &AssignChat{}
	case EventTransferChat:
		cmd = &TransferChat{}
	case EventCompleteChat:
		cmd = &CompleteChat{}
	case EventRequestStaff:
		cmd = &RequestStaff{}
	case EventStaffStatusUpdate:
		cmd = &StaffStatusUpdate{}
	case EventCustomerLeave:
		cmd = &CustomerLeave{}
	default:
		return nil, apperrors.NewValidationError("unknown event", map[string]any{"event": env.Event})
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, cmd); err != nil {
			return nil, apperrors.NewValidationError("invalid payload", map[string]any{"event": env.Event})
		}
	}
	return deref(cmd), nil
}

func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *StaffAuthenticate:
		c.Token = strings.TrimSpace(c.Token)
		return *c
	case *CustomerJoin:
		return *c
	case *SendMessage:
		return *c
	case *Typing:
		return *c
	case *AssignChat:
		return *c
	case *TransferChat:
		return *c
	case *CompleteChat:
		return *c
	case *RequestStaff:
		return *c
	case *StaffStatusUpdate:
		return *c
	case *CustomerLeave:
		return *c
	}
	return cmd
}

// Outbound payloads.

type AuthenticatedPayload struct {
	Staff       domain.StaffMember  `json:"staff"`
	Assignments []domain.Assignment `json:"assignments"`
}

type JoinedPayload struct {
	SessionID string               `json:"sessionId"`
	Status    domain.SessionStatus `json:"status"`
	Messages  []domain.Message     `json:"messages"`
}

type NewMessagePayload struct {
	SessionID string         `json:"sessionId"`
	Message   domain.Message `json:"message"`
}

type StaffJoinedPayload struct {
	SessionID string `json:"sessionId"`
	StaffID   string `json:"staffId"`
	StaffName string `json:"staffName"`
	Message   string `json:"message"`
}

type ChatAssignedPayload struct {
	SessionID  string             `json:"sessionId"`
	Assignment domain.Assignment  `json:"assignment"`
	Session    domain.Session     `json:"session"`
	Messages   []domain.Message   `json:"messages"`
	Automatic  bool               `json:"automatic"`
	QueueEntry *domain.QueueEntry `json:"queueEntry,omitempty"`
}

type ChatTransferredPayload struct {
	SessionID   string            `json:"sessionId"`
	FromStaffID string            `json:"fromStaffId"`
	ToStaffID   string            `json:"toStaffId"`
	StaffName   string            `json:"staffName,omitempty"`
	Assignment  domain.Assignment `json:"assignment"`
}

type ChatCompletedPayload struct {
	SessionID   string     `json:"sessionId"`
	StaffID     string     `json:"staffId"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type UserTypingPayload struct {
	SessionID string             `json:"sessionId"`
	Role      domain.MessageRole `json:"role"`
	UserID    string             `json:"userId,omitempty"`
	IsTyping  bool               `json:"isTyping"`
}

type StaffStatusChangedPayload struct {
	StaffID string             `json:"staffId"`
	Status  domain.StaffStatus `json:"status"`
}

// ErrorPayload is sent to staff connections, which can act on the code.
type ErrorPayload struct {
	Success bool       `json:"success"`
	Error   ErrorField `json:"error"`
}

type ErrorField struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func errorFrame(err error) Frame {
	de := apperrors.ToDomainError(err)
	return Frame{Event: EventError, Data: ErrorPayload{
		Error: ErrorField{Code: de.Code, Message: de.Message, Details: de.Details},
	}}
}
