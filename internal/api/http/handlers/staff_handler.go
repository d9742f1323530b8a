package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/handoffdesk/chat-handoff/internal/api/dto"
	"github.com/handoffdesk/chat-handoff/internal/auth"
	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/service"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

// Coordinator is the hand-off entry point shared with the realtime surface, so
// HTTP mutations notify connected clients exactly like socket commands do.
type Coordinator interface {
	Assign(ctx context.Context, actor *domain.StaffMember, sessionID, staffID string) (domain.Assignment, error)
	Transfer(ctx context.Context, actor *domain.StaffMember, sessionID, toStaffID string) (domain.Assignment, error)
	Complete(ctx context.Context, actor *domain.StaffMember, sessionID string) (domain.Assignment, error)
	SetStaffStatus(ctx context.Context, staffID string, status domain.StaffStatus) error
}

// StaffAuthenticator issues tokens and provisions accounts.
type StaffAuthenticator interface {
	LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, time.Time, error)
	CreateStaffMember(ctx context.Context, actor *domain.StaffMember, in service.CreateStaffMemberInput) (*domain.StaffMember, error)
}

// StaffHandler exposes staff login, presence and provisioning endpoints.
type StaffHandler struct {
	auth        StaffAuthenticator
	directory   *service.StaffDirectory
	coordinator Coordinator
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authenticator StaffAuthenticator, directory *service.StaffDirectory, coordinator Coordinator) *StaffHandler {
	return &StaffHandler{auth: authenticator, directory: directory, coordinator: coordinator}
}

// Login handles POST /auth/staff/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return fiber.NewError(http.StatusBadRequest, "email and password required")
	}

	staff, token, exp, err := h.auth.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, dto.AuthResponse{Token: token, ExpiresAt: exp, Staff: staff.Public()})
}

// UpdateStatus handles POST /staff/status for the caller.
func (h *StaffHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.StaffStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if !req.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": req.Status})
	}
	if err := h.coordinator.SetStaffStatus(c.UserContext(), actor.ID, req.Status); err != nil {
		return err
	}
	staff, err := h.directory.Get(c.UserContext(), actor.ID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, staff.Public())
}

// List handles GET /staff.
func (h *StaffHandler) List(c *fiber.Ctx) error {
	members, err := h.directory.List(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]domain.StaffMember, 0, len(members))
	for _, m := range members {
		out = append(out, m.Public())
	}
	return respond(c, http.StatusOK, out)
}

// Create handles POST /admin/staff.
func (h *StaffHandler) Create(c *fiber.Ctx) error {
	actor, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.CreateStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.MaxConcurrentChats < 0 {
		return apperrors.NewValidationError("maxConcurrentChats must not be negative", nil)
	}

	staff, err := h.auth.CreateStaffMember(c.UserContext(), actor, service.CreateStaffMemberInput{
		Name:               req.Name,
		Email:              req.Email,
		Password:           req.Password,
		Role:               req.Role,
		MaxConcurrentChats: req.MaxConcurrentChats,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, staff.Public())
}

func requireStaff(c *fiber.Ctx) (*domain.StaffMember, error) {
	staff, ok := auth.StaffFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return staff, nil
}
