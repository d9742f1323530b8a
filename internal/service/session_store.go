package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/repository"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
	"github.com/handoffdesk/chat-handoff/pkg/util/keylock"
)

// SessionStore owns conversations and their transcripts.
type SessionStore struct {
	sessions    repository.Store[domain.Session]
	transcripts repository.Store[domain.Transcript]
	locks       *keylock.KeyLock
	logger      *zap.Logger
	now         func() time.Time
}

// NewSessionStore constructs the store.
func NewSessionStore(sessions repository.Store[domain.Session], transcripts repository.Store[domain.Transcript], logger *zap.Logger) *SessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionStore{
		sessions:    sessions,
		transcripts: transcripts,
		locks:       keylock.New(),
		logger:      logger,
		now:         time.Now,
	}
}

// CreateSession opens an AI-handled conversation.
func (s *SessionStore) CreateSession(ctx context.Context, customerContext map[string]string) (*domain.Session, error) {
	now := s.now()
	session := domain.Session{
		ID:              uuid.NewString(),
		Status:          domain.SessionActive,
		CustomerContext: customerContext,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.sessions.Put(ctx, session.ID, session); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("session created", zap.String("session_id", session.ID))
	return &session, nil
}

// Get returns a session by id.
func (s *SessionStore) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "session", map[string]any{"session_id": sessionID})
	}
	return &session, nil
}

// UpdateStatus sets the hand-off status and the owning staff member. staffID is
// only kept while the status is with_staff.
func (s *SessionStore) UpdateStatus(ctx context.Context, sessionID string, status domain.SessionStatus, staffID string) (*domain.Session, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("invalid session status", map[string]any{"status": status})
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, notFoundOr(err, "session", map[string]any{"session_id": sessionID})
	}
	now := s.now()
	old := session.Status
	session.Status = status
	session.UpdatedAt = now
	if status == domain.SessionWithStaff {
		session.AssignedStaffID = staffID
	} else {
		session.AssignedStaffID = ""
	}
	if status == domain.SessionResolved && session.ResolvedAt == nil {
		session.ResolvedAt = &now
	}
	if err := s.sessions.Put(ctx, sessionID, session); err != nil {
		return nil, apperrors.MapError(err)
	}
	if old != status {
		s.logger.Info("session status changed",
			zap.String("session_id", sessionID),
			zap.String("old_status", string(old)),
			zap.String("new_status", string(status)))
	}
	return &session, nil
}

// AddMessage appends to the transcript. Sequence numbers are dense per session.
func (s *SessionStore) AddMessage(ctx context.Context, sessionID, content string, role domain.MessageRole, metadata map[string]any) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("message content required", nil)
	}
	if !role.Valid() {
		return nil, apperrors.NewValidationError("invalid message role", map[string]any{"role": role})
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return nil, notFoundOr(err, "session", map[string]any{"session_id": sessionID})
	}
	transcript, err := s.transcripts.Get(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.MapError(err)
	}
	transcript.SessionID = sessionID

	msg := domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Seq:       int64(len(transcript.Messages) + 1),
		Role:      role,
		Content:   content,
		Metadata:  metadata,
		CreatedAt: s.now(),
	}
	transcript.Messages = append(transcript.Messages, msg)
	if err := s.transcripts.Put(ctx, sessionID, transcript); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &msg, nil
}

// History returns the last limit messages (all when limit <= 0), oldest first.
func (s *SessionStore) History(ctx context.Context, sessionID string, limit int) ([]domain.Message, error) {
	transcript, err := s.transcripts.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if _, err := s.Get(ctx, sessionID); err != nil {
				return nil, err
			}
			return []domain.Message{}, nil
		}
		return nil, apperrors.MapError(err)
	}
	msgs := transcript.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// ListByStatus returns sessions in the given status.
func (s *SessionStore) ListByStatus(ctx context.Context, status domain.SessionStatus) ([]domain.Session, error) {
	all, err := s.sessions.Scan(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]domain.Session, 0)
	for _, session := range all {
		if session.Status == status {
			out = append(out, session)
		}
	}
	return out, nil
}
