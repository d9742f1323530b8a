package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

// Match is a queued session handed to a staff member.
type Match struct {
	Entry      domain.QueueEntry
	Assignment domain.Assignment
}

// AutoAssigner pairs the queue head with the least-loaded available staff member.
// It is safe to run concurrently with itself: the queue hands each head to one
// caller and the ledger refuses to push anyone over capacity.
type AutoAssigner struct {
	queue  *Queue
	staff  *StaffDirectory
	ledger *AssignmentLedger
	logger *zap.Logger
}

// NewAutoAssigner constructs the assigner.
func NewAutoAssigner(queue *Queue, staff *StaffDirectory, ledger *AssignmentLedger, logger *zap.Logger) *AutoAssigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoAssigner{queue: queue, staff: staff, ledger: ledger, logger: logger}
}

// AssignNext makes one routing attempt. It returns QUEUE_EMPTY when nothing is
// waiting and NO_STAFF_AVAILABLE when the head has to stay queued. A losing race
// on the chosen staff member is retried once with the remaining candidates.
func (a *AutoAssigner) AssignNext(ctx context.Context) (Match, error) {
	candidates, err := a.staff.ListAvailable(ctx)
	if err != nil {
		return Match{}, err
	}

	for attempt := 0; attempt < 2; attempt++ {
		head, err := a.queue.DequeueHead(ctx)
		if err != nil {
			return Match{}, err
		}
		if len(candidates) == 0 {
			a.requeue(ctx, head)
			return Match{}, apperrors.NewNoStaffAvailable()
		}

		chosen := candidates[0]
		candidates = candidates[1:]

		assignment, _, err := a.ledger.Create(ctx, head.SessionID, chosen.ID)
		if err == nil {
			a.logger.Info("auto-assigned session",
				zap.String("session_id", head.SessionID),
				zap.String("staff_id", chosen.ID),
				zap.Int("staff_load", chosen.CurrentChatCount+1))
			return Match{Entry: head, Assignment: assignment}, nil
		}

		if apperrors.IsCode(err, apperrors.CodeConflict) {
			// Someone else already owns the session; it must not go back in the queue.
			a.logger.Info("queued session already assigned", zap.String("session_id", head.SessionID))
			continue
		}
		a.requeue(ctx, head)
		if !apperrors.IsCode(err, apperrors.CodeCapacityExceeded) && !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return Match{}, err
		}
		a.logger.Debug("routing candidate lost race",
			zap.String("session_id", head.SessionID),
			zap.String("staff_id", chosen.ID))
	}
	return Match{}, apperrors.NewNoStaffAvailable()
}

// Drain assigns queued sessions until the queue is empty or nobody can take more.
func (a *AutoAssigner) Drain(ctx context.Context) ([]Match, error) {
	var matches []Match
	for {
		match, err := a.AssignNext(ctx)
		if err != nil {
			if apperrors.IsCode(err, apperrors.CodeQueueEmpty) || apperrors.IsCode(err, apperrors.CodeNoStaffAvailable) {
				return matches, nil
			}
			return matches, err
		}
		matches = append(matches, match)
	}
}

func (a *AutoAssigner) requeue(ctx context.Context, head domain.QueueEntry) {
	if _, err := a.queue.Enqueue(ctx, head); err != nil && !apperrors.IsCode(err, apperrors.CodeAlreadyQueued) {
		a.logger.Error("failed to re-enqueue session", zap.String("session_id", head.SessionID), zap.Error(err))
	}
}
