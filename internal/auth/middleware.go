package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// StaffVerifier resolves a bearer token to a staff member.
type StaffVerifier interface {
	VerifyToken(ctx context.Context, token string) (*domain.StaffMember, error)
}

// AuthMiddleware validates bearer tokens and loads the staff principal.
type AuthMiddleware struct {
	verifier StaffVerifier
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(verifier StaffVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	staff, err := m.verifier.VerifyToken(c.UserContext(), strings.TrimSpace(parts[1]))
	if err != nil {
		return err
	}

	c.Locals(principalKey, staff)
	return c.Next()
}

// StaffFromContext retrieves the authenticated staff member.
func StaffFromContext(c *fiber.Ctx) (*domain.StaffMember, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	staff, ok := val.(*domain.StaffMember)
	return staff, ok && staff != nil
}

// RequireStaffRole ensures the staff principal has one of the allowed roles.
func RequireStaffRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := make(map[domain.StaffRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		staff, ok := StaffFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("staff required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[staff.Role]; !exists {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}
