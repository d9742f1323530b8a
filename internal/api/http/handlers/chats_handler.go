package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/handoffdesk/chat-handoff/internal/api/dto"
	"github.com/handoffdesk/chat-handoff/internal/service"
)

// ChatsHandler drives assignment lifecycle over HTTP.
type ChatsHandler struct {
	coordinator Coordinator
	ledger      *service.AssignmentLedger
}

// NewChatsHandler constructs handler.
func NewChatsHandler(coordinator Coordinator, ledger *service.AssignmentLedger) *ChatsHandler {
	return &ChatsHandler{coordinator: coordinator, ledger: ledger}
}

// Assign handles POST /chats/:sessionId/assign.
func (h *ChatsHandler) Assign(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.AssignChatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}
	assignment, err := h.coordinator.Assign(c.UserContext(), actor, param(c, "sessionId"), req.StaffID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, assignment)
}

// Transfer handles POST /chats/:sessionId/transfer.
func (h *ChatsHandler) Transfer(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.TransferChatRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	assignment, err := h.coordinator.Transfer(c.UserContext(), actor, param(c, "sessionId"), req.ToStaffID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, assignment)
}

// Complete handles POST /chats/:sessionId/complete.
func (h *ChatsHandler) Complete(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}
	assignment, err := h.coordinator.Complete(c.UserContext(), actor, param(c, "sessionId"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, assignment)
}

// Mine handles GET /assignments, the caller's live chats.
func (h *ChatsHandler) Mine(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}
	assignments, err := h.ledger.ListByStaff(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, assignments)
}
