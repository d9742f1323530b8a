package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/handoffdesk/chat-handoff/internal/service"
)

// QueueHandler exposes read-only queue views.
type QueueHandler struct {
	queue *service.Queue
}

// NewQueueHandler constructs handler.
func NewQueueHandler(queue *service.Queue) *QueueHandler {
	return &QueueHandler{queue: queue}
}

// Snapshot handles GET /queue.
func (h *QueueHandler) Snapshot(c *fiber.Ctx) error {
	entries, err := h.queue.Snapshot(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, entries)
}

// Stats handles GET /queue/stats.
func (h *QueueHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.queue.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, stats)
}
