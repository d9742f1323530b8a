package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/handoffdesk/chat-handoff/internal/api/dto"
	"github.com/handoffdesk/chat-handoff/internal/service"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

// SessionsHandler serves the customer widget: open a conversation, read it back.
type SessionsHandler struct {
	sessions *service.SessionStore
}

// NewSessionsHandler constructs handler.
func NewSessionsHandler(sessions *service.SessionStore) *SessionsHandler {
	return &SessionsHandler{sessions: sessions}
}

// Create handles POST /sessions.
func (h *SessionsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}
	session, err := h.sessions.CreateSession(c.UserContext(), req.CustomerContext)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, session)
}

// Messages handles GET /sessions/:id/messages?limit=N.
func (h *SessionsHandler) Messages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return apperrors.NewValidationError("limit must not be negative", map[string]any{"limit": limit})
	}
	messages, err := h.sessions.History(c.UserContext(), param(c, "id"), limit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, messages)
}
