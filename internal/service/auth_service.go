package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/auth"
	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/repository"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

// AuthService handles staff login, token verification and provisioning.
type AuthService struct {
	staff           repository.StaffRepository
	directory       *StaffDirectory
	tokenMgr        *auth.TokenManager
	bcryptCost      int
	defaultMaxChats int
	logger          *zap.Logger
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	StaffRepo repository.StaffRepository
	Directory *StaffDirectory
	Logger    *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		staff:           deps.StaffRepo,
		directory:       deps.Directory,
		tokenMgr:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost:      cfg.Auth.BcryptCost,
		defaultMaxChats: cfg.Handoff.DefaultMaxChats,
		logger:          logger,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// LoginStaff authenticates staff and returns a role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, time.Time, error) {
	staff, err := s.staff.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(staff.ID, domain.SubjectTypeStaff, &staff.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return staff, token, exp, nil
}

// VerifyToken resolves a bearer token to the staff member it was issued for.
func (s *AuthService) VerifyToken(ctx context.Context, token string) (*domain.StaffMember, error) {
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	if claims.Subject != domain.SubjectTypeStaff {
		return nil, apperrors.NewUnauthorized("unknown subject")
	}
	staff, err := s.staff.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("staff not found")
		}
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// CreateStaffMemberInput carries provisioning fields.
type CreateStaffMemberInput struct {
	Name               string
	Email              string
	Password           string
	Role               domain.StaffRole
	MaxConcurrentChats int
}

// CreateStaffMember provisions a new staff account (admin only).
func (s *AuthService) CreateStaffMember(ctx context.Context, actor *domain.StaffMember, in CreateStaffMemberInput) (*domain.StaffMember, error) {
	if actor == nil || actor.Role != domain.StaffRoleAdmin {
		return nil, apperrors.NewForbidden("admin role required")
	}
	return s.provision(ctx, in)
}

// EnsureBootstrapAdmin provisions the configured admin account if it does not exist yet.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, cfg config.AuthConfig) error {
	if cfg.BootstrapAdminEmail == "" || cfg.BootstrapAdminPassword == "" {
		return nil
	}
	if _, err := s.staff.GetByEmail(ctx, cfg.BootstrapAdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	staff, err := s.provision(ctx, CreateStaffMemberInput{
		Name:     cfg.BootstrapAdminName,
		Email:    cfg.BootstrapAdminEmail,
		Password: cfg.BootstrapAdminPassword,
		Role:     domain.StaffRoleAdmin,
	})
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("staff_id", staff.ID))
	return nil
}

func (s *AuthService) provision(ctx context.Context, in CreateStaffMemberInput) (*domain.StaffMember, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.NewValidationError("name, email and password required", nil)
	}
	if in.Role == "" {
		in.Role = domain.StaffRoleAgent
	}
	if !in.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": in.Role})
	}
	if in.MaxConcurrentChats == 0 {
		in.MaxConcurrentChats = s.defaultMaxChats
	}
	if existing, err := s.staff.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, apperrors.NewValidationError("password too long", map[string]any{"max_bytes": 72})
	} else if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	staff := &domain.StaffMember{
		ID:                 uuid.NewString(),
		Name:               strings.TrimSpace(in.Name),
		Email:              email,
		PasswordHash:       hash,
		Role:               in.Role,
		Status:             domain.StaffStatusOffline,
		MaxConcurrentChats: in.MaxConcurrentChats,
	}
	if err := s.directory.Register(ctx, staff); err != nil {
		return nil, err
	}
	return staff, nil
}
