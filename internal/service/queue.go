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

// Queue is the waiting list of sessions that asked for a human. A single mutex
// guards the queue as a whole.
type Queue struct {
	mu     sync.Mutex
	store  repository.Store[domain.QueueEntry]
	logger *zap.Logger
	now    func() time.Time
}

// NewQueue constructs the queue over a store.
func NewQueue(store repository.Store[domain.QueueEntry], logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{store: store, logger: logger, now: time.Now}
}

// Enqueue adds a session. A zero EnqueuedAt is stamped with the current time; a
// non-zero one is kept so re-enqueued heads keep their place.
func (q *Queue) Enqueue(ctx context.Context, entry domain.QueueEntry) (domain.QueueEntry, error) {
	if entry.SessionID == "" {
		return domain.QueueEntry{}, apperrors.NewValidationError("session id required", nil)
	}
	if !entry.Priority.Valid() {
		entry.Priority = domain.PriorityMedium
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.store.Get(ctx, entry.SessionID); err == nil {
		return domain.QueueEntry{}, apperrors.NewAlreadyQueued(entry.SessionID)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return domain.QueueEntry{}, apperrors.MapError(err)
	}

	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = q.now()
	}
	if err := q.store.Put(ctx, entry.SessionID, entry); err != nil {
		return domain.QueueEntry{}, apperrors.MapError(err)
	}
	q.logger.Info("session enqueued",
		zap.String("session_id", entry.SessionID),
		zap.String("priority", string(entry.Priority)))
	return entry, nil
}

// DequeueHead removes and returns the highest-priority, then oldest, entry.
func (q *Queue) DequeueHead(ctx context.Context) (domain.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := q.ordered(ctx)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	if len(entries) == 0 {
		return domain.QueueEntry{}, apperrors.NewQueueEmpty()
	}
	head := entries[0]
	if err := q.store.Delete(ctx, head.SessionID); err != nil {
		return domain.QueueEntry{}, apperrors.MapError(err)
	}
	return head, nil
}

// Remove drops a session if present and reports whether it was queued.
func (q *Queue) Remove(ctx context.Context, sessionID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.store.Get(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.MapError(err)
	}
	if err := q.store.Delete(ctx, sessionID); err != nil {
		return false, apperrors.MapError(err)
	}
	return true, nil
}

// Contains reports whether a session is queued.
func (q *Queue) Contains(ctx context.Context, sessionID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, err := q.store.Get(ctx, sessionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, apperrors.MapError(err)
	}
	return true, nil
}

// Snapshot returns every entry in service order with its computed wait time.
func (q *Queue) Snapshot(ctx context.Context) ([]domain.QueuedSession, error) {
	q.mu.Lock()
	entries, err := q.ordered(ctx)
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := q.now()
	out := make([]domain.QueuedSession, 0, len(entries))
	for i, entry := range entries {
		wait := now.Sub(entry.EnqueuedAt)
		if wait < 0 {
			wait = 0
		}
		out = append(out, domain.QueuedSession{
			QueueEntry: entry,
			Position:   i + 1,
			Wait:       wait,
			WaitSecs:   wait.Seconds(),
		})
	}
	return out, nil
}

// Stats summarizes the queue for queue_updated broadcasts.
func (q *Queue) Stats(ctx context.Context) (domain.QueueStats, error) {
	snapshot, err := q.Snapshot(ctx)
	if err != nil {
		return domain.QueueStats{}, err
	}
	stats := domain.QueueStats{
		Length: len(snapshot),
		PriorityBreakdown: map[domain.Priority]int{
			domain.PriorityHigh:   0,
			domain.PriorityMedium: 0,
			domain.PriorityLow:    0,
		},
	}
	var total float64
	for _, entry := range snapshot {
		stats.PriorityBreakdown[entry.Priority]++
		total += entry.WaitSecs
		if entry.WaitSecs > stats.LongestWaitTime {
			stats.LongestWaitTime = entry.WaitSecs
		}
	}
	if len(snapshot) > 0 {
		stats.AverageWaitTime = total / float64(len(snapshot))
	}
	return stats, nil
}

func (q *Queue) ordered(ctx context.Context) ([]domain.QueueEntry, error) {
	entries, err := q.store.Scan(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Before(entries[j])
	})
	return entries, nil
}
