package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/repository"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

// AssignmentLedger records session ownership. A session has at most one
// non-completed assignment; load changes on the staff directory are made in the
// same critical section as the ledger write.
type AssignmentLedger struct {
	mu     sync.Mutex
	store  repository.Store[domain.Assignment]
	staff  *StaffDirectory
	queue  *Queue
	logger *zap.Logger
	now    func() time.Time
}

// NewAssignmentLedger constructs the ledger.
func NewAssignmentLedger(store repository.Store[domain.Assignment], staff *StaffDirectory, queue *Queue, logger *zap.Logger) *AssignmentLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentLedger{
		store:  store,
		staff:  staff,
		queue:  queue,
		logger: logger,
		now:    time.Now,
	}
}

// Create assigns a session to a staff member. Re-creating with the same staff
// member is a no-op that returns created=false. A live assignment to someone
// else is a CONFLICT. If the staff member has no spare capacity nothing is
// written. On success the session is removed from the queue.
func (l *AssignmentLedger) Create(ctx context.Context, sessionID, staffID string) (domain.Assignment, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.store.Get(ctx, sessionID)
	switch {
	case err == nil && !existing.Status.Terminal():
		if existing.StaffID == staffID {
			return existing, false, nil
		}
		return domain.Assignment{}, false, apperrors.NewConflict("session already assigned", map[string]any{
			"session_id": sessionID,
			"staff_id":   existing.StaffID,
		})
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return domain.Assignment{}, false, apperrors.MapError(err)
	}

	if _, err := l.staff.IncrementLoad(ctx, staffID); err != nil {
		return domain.Assignment{}, false, err
	}

	assignment := domain.Assignment{
		SessionID:  sessionID,
		StaffID:    staffID,
		Status:     domain.AssignmentAssigned,
		AssignedAt: l.now(),
	}
	if err := l.store.Put(ctx, sessionID, assignment); err != nil {
		if rbErr := l.staff.DecrementLoad(ctx, staffID); rbErr != nil {
			l.logger.Error("assignment rollback failed", zap.String("staff_id", staffID), zap.Error(rbErr))
		}
		return domain.Assignment{}, false, apperrors.MapError(err)
	}

	if _, err := l.queue.Remove(ctx, sessionID); err != nil {
		l.logger.Warn("failed to dequeue assigned session", zap.String("session_id", sessionID), zap.Error(err))
	}

	l.logger.Info("chat assigned", zap.String("session_id", sessionID), zap.String("staff_id", staffID))
	return assignment, true, nil
}

// Transfer moves a live assignment to another staff member in place. A
// completed assignment is left untouched and returned with moved=false.
func (l *AssignmentLedger) Transfer(ctx context.Context, sessionID, fromStaffID, toStaffID string) (domain.Assignment, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assignment, err := l.get(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, false, err
	}
	if assignment.Status.Terminal() {
		return assignment, false, nil
	}
	if assignment.StaffID != fromStaffID {
		return domain.Assignment{}, false, apperrors.NewMismatch("session is not assigned to the transferring staff member", map[string]any{
			"session_id": sessionID,
			"staff_id":   assignment.StaffID,
		})
	}
	if fromStaffID == toStaffID {
		return assignment, false, nil
	}

	if err := l.staff.TransferLoad(ctx, fromStaffID, toStaffID); err != nil {
		return domain.Assignment{}, false, err
	}

	previous := assignment
	assignment.StaffID = toStaffID
	assignment.AssignedAt = l.now()
	assignment.Status = domain.AssignmentAssigned
	assignment.ActivatedAt = nil
	assignment.Transfers++
	if err := l.store.Put(ctx, sessionID, assignment); err != nil {
		if rbErr := l.staff.TransferLoad(ctx, toStaffID, fromStaffID); rbErr != nil {
			return domain.Assignment{}, false, apperrors.NewTransferFailed(rbErr, map[string]any{"session_id": sessionID})
		}
		return previous, false, apperrors.MapError(err)
	}

	l.logger.Info("chat transferred",
		zap.String("session_id", sessionID),
		zap.String("from_staff_id", fromStaffID),
		zap.String("to_staff_id", toStaffID))
	return assignment, true, nil
}

// Complete marks the assignment resolved and releases the staff slot exactly
// once. Completing an already completed assignment returns completed=false.
func (l *AssignmentLedger) Complete(ctx context.Context, sessionID string) (domain.Assignment, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assignment, err := l.get(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, false, err
	}
	if assignment.Status.Terminal() {
		return assignment, false, nil
	}

	now := l.now()
	assignment.Status = domain.AssignmentCompleted
	assignment.CompletedAt = &now
	if err := l.store.Put(ctx, sessionID, assignment); err != nil {
		return domain.Assignment{}, false, apperrors.MapError(err)
	}
	if err := l.staff.DecrementLoad(ctx, assignment.StaffID); err != nil {
		l.logger.Error("failed to release staff load",
			zap.String("session_id", sessionID),
			zap.String("staff_id", assignment.StaffID),
			zap.Error(err))
	}

	l.logger.Info("chat completed", zap.String("session_id", sessionID), zap.String("staff_id", assignment.StaffID))
	return assignment, true, nil
}

// Activate records the assigned -> active transition on the first staff reply.
func (l *AssignmentLedger) Activate(ctx context.Context, sessionID, staffID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assignment, err := l.get(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if assignment.Status != domain.AssignmentAssigned || assignment.StaffID != staffID {
		return false, nil
	}
	now := l.now()
	assignment.Status = domain.AssignmentActive
	assignment.ActivatedAt = &now
	if err := l.store.Put(ctx, sessionID, assignment); err != nil {
		return false, apperrors.MapError(err)
	}
	return true, nil
}

// Get returns the latest assignment of a session, completed or not.
func (l *AssignmentLedger) Get(ctx context.Context, sessionID string) (domain.Assignment, error) {
	return l.get(ctx, sessionID)
}

// Live returns the non-completed assignment of a session, if any.
func (l *AssignmentLedger) Live(ctx context.Context, sessionID string) (domain.Assignment, bool, error) {
	assignment, err := l.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Assignment{}, false, nil
		}
		return domain.Assignment{}, false, apperrors.MapError(err)
	}
	if assignment.Status.Terminal() {
		return domain.Assignment{}, false, nil
	}
	return assignment, true, nil
}

// ListByStaff returns the non-completed assignments of a staff member, oldest first.
func (l *AssignmentLedger) ListByStaff(ctx context.Context, staffID string) ([]domain.Assignment, error) {
	all, err := l.store.Scan(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]domain.Assignment, 0)
	for _, a := range all {
		if a.StaffID == staffID && !a.Status.Terminal() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AssignedAt.Before(out[j].AssignedAt)
	})
	return out, nil
}

func (l *AssignmentLedger) get(ctx context.Context, sessionID string) (domain.Assignment, error) {
	assignment, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Assignment{}, notFoundOr(err, "assignment", map[string]any{"session_id": sessionID})
	}
	return assignment, nil
}
