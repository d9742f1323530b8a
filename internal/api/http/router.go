package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/handoffdesk/chat-handoff/internal/api/http/handlers"
	"github.com/handoffdesk/chat-handoff/internal/auth"
	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Staff          *handlers.StaffHandler
	Chats          *handlers.ChatsHandler
	Queue          *handlers.QueueHandler
	Sessions       *handlers.SessionsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/staff/login", cfg.Staff.Login)

	app.Post("/sessions", cfg.Sessions.Create)
	app.Get("/sessions/:id/messages", cfg.Sessions.Messages)

	authed := func(handler fiber.Handler, roles ...domain.StaffRole) []fiber.Handler {
		return []fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireStaffRole(roles...), handler}
	}

	app.Get("/staff", authed(cfg.Staff.List)...)
	app.Post("/staff/status", authed(cfg.Staff.UpdateStatus)...)

	app.Post("/chats/:sessionId/assign", authed(cfg.Chats.Assign)...)
	app.Post("/chats/:sessionId/transfer", authed(cfg.Chats.Transfer)...)
	app.Post("/chats/:sessionId/complete", authed(cfg.Chats.Complete)...)
	app.Get("/assignments", authed(cfg.Chats.Mine)...)

	app.Get("/queue", authed(cfg.Queue.Snapshot)...)
	app.Get("/queue/stats", authed(cfg.Queue.Stats)...)

	app.Post("/admin/staff", authed(cfg.Staff.Create, domain.StaffRoleAdmin)...)
}
