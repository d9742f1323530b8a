package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

func TestAssignNextPicksLeastLoaded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 3, domain.StaffStatusOnline)
	f.addStaff(t, "b", 3, domain.StaffStatusOnline)
	_, _, err := f.ledger.Create(ctx, "existing", "a")
	require.NoError(t, err)

	_, err = f.queue.Enqueue(ctx, domain.QueueEntry{SessionID: "s1"})
	require.NoError(t, err)

	match, err := f.assigner.AssignNext(ctx)
	require.NoError(t, err)
	require.Equal(t, "s1", match.Entry.SessionID)
	require.Equal(t, "b", match.Assignment.StaffID)
}

func TestAssignNextWithoutStaffKeepsSessionQueued(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "offline", 3, domain.StaffStatusOffline)
	_, err := f.queue.Enqueue(ctx, domain.QueueEntry{SessionID: "s1", Priority: domain.PriorityHigh})
	require.NoError(t, err)
	before, err := f.queue.Snapshot(ctx)
	require.NoError(t, err)

	_, err = f.assigner.AssignNext(ctx)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNoStaffAvailable))

	after, err := f.queue.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, before[0].EnqueuedAt, after[0].EnqueuedAt)

	_, err = f.directory.SetStatus(ctx, "offline", domain.StaffStatusOnline)
	require.NoError(t, err)
	matches, err := f.assigner.Drain(ctx)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "offline", matches[0].Assignment.StaffID)
}

func TestConcurrentAssignmentsRespectSingleSlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 1, domain.StaffStatusOnline)
	for _, id := range []string{"s1", "s2"} {
		_, err := f.queue.Enqueue(ctx, domain.QueueEntry{SessionID: id})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.assigner.AssignNext(ctx)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, apperrors.IsCode(err, apperrors.CodeNoStaffAvailable), err)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, f.load(t, "a"))

	snapshot, err := f.queue.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
}

func TestConcurrentAssignmentsUseSecondStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 1, domain.StaffStatusOnline)
	f.addStaff(t, "b", 1, domain.StaffStatusOnline)
	for _, id := range []string{"s1", "s2"} {
		_, err := f.queue.Enqueue(ctx, domain.QueueEntry{SessionID: id})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.assigner.Drain(ctx)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, f.load(t, "a"))
	require.Equal(t, 1, f.load(t, "b"))
	snapshot, err := f.queue.Snapshot(ctx)
	require.NoError(t, err)
	require.Empty(t, snapshot)
}
