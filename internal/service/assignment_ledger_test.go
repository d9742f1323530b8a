package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

func TestLedgerCreateIsIdempotentAndExclusive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 2, domain.StaffStatusOnline)
	_, err := f.queue.Enqueue(ctx, domain.QueueEntry{SessionID: "s1"})
	require.NoError(t, err)

	assignment, created, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, domain.AssignmentAssigned, assignment.Status)

	queued, err := f.queue.Contains(ctx, "s1")
	require.NoError(t, err)
	require.False(t, queued)

	_, created, err = f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, 1, f.load(t, "a"))

	_, _, err = f.ledger.Create(ctx, "s1", "b")
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	require.Equal(t, 0, f.load(t, "b"))
}

func TestLedgerCreateAtCapacityWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 1, domain.StaffStatusOnline)

	_, _, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)
	_, _, err = f.ledger.Create(ctx, "s2", "a")
	require.True(t, apperrors.IsCode(err, apperrors.CodeCapacityExceeded))

	_, live, err := f.ledger.Live(ctx, "s2")
	require.NoError(t, err)
	require.False(t, live)
	require.Equal(t, 1, f.load(t, "a"))
}

func TestLedgerTransferToFullTargetFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 1, domain.StaffStatusOnline)

	_, _, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)
	_, _, err = f.ledger.Create(ctx, "other", "b")
	require.NoError(t, err)

	_, _, err = f.ledger.Transfer(ctx, "s1", "a", "b")
	require.True(t, apperrors.IsCode(err, apperrors.CodeCapacityExceeded))
	require.Equal(t, 1, f.load(t, "a"))
	require.Equal(t, 1, f.load(t, "b"))

	current, err := f.ledger.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "a", current.StaffID)
}

func TestLedgerTransferMovesLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 2, domain.StaffStatusOnline)

	_, _, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)

	_, _, err = f.ledger.Transfer(ctx, "s1", "b", "a")
	require.True(t, apperrors.IsCode(err, apperrors.CodeMismatch))

	moved, ok, err := f.ledger.Transfer(ctx, "s1", "a", "b")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", moved.StaffID)
	require.Equal(t, 1, moved.Transfers)
	require.Equal(t, 0, f.load(t, "a"))
	require.Equal(t, 1, f.load(t, "b"))
}

func TestLedgerCompleteReleasesLoadOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)

	_, _, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)
	_, _, err = f.ledger.Create(ctx, "s2", "a")
	require.NoError(t, err)

	done, completed, err := f.ledger.Complete(ctx, "s1")
	require.NoError(t, err)
	require.True(t, completed)
	require.Equal(t, domain.AssignmentCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	require.Equal(t, 1, f.load(t, "a"))

	_, completed, err = f.ledger.Complete(ctx, "s1")
	require.NoError(t, err)
	require.False(t, completed)
	require.Equal(t, 1, f.load(t, "a"))

	_, moved, err := f.ledger.Transfer(ctx, "s1", "a", "a")
	require.NoError(t, err)
	require.False(t, moved)

	_, _, err = f.ledger.Complete(ctx, "missing")
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestLedgerActivateOnlyFromAssigned(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	_, _, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)

	ok, err := f.ledger.Activate(ctx, "s1", "someone-else")
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.ledger.Activate(ctx, "s1", "a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = f.ledger.Activate(ctx, "s1", "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLedgerKeepsOneLiveAssignmentPerSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		f.addStaff(t, id, 2, domain.StaffStatusOnline)
	}

	steps := []func(){
		func() { _, _, _ = f.ledger.Create(ctx, "s1", "a") },
		func() { _, _, _ = f.ledger.Create(ctx, "s1", "b") },
		func() { _, _, _ = f.ledger.Transfer(ctx, "s1", "a", "c") },
		func() { _, _, _ = f.ledger.Create(ctx, "s2", "c") },
		func() { _, _, _ = f.ledger.Complete(ctx, "s1") },
		func() { _, _, _ = f.ledger.Create(ctx, "s1", "b") },
		func() { _, _, _ = f.ledger.Transfer(ctx, "s2", "c", "a") },
		func() { _, _, _ = f.ledger.Complete(ctx, "s1") },
		func() { _, _, _ = f.ledger.Complete(ctx, "s1") },
	}
	for _, step := range steps {
		step()

		all, err := f.stores.Assignments.Scan(ctx)
		require.NoError(t, err)
		liveBySession := map[string]int{}
		liveByStaff := map[string]int{}
		for _, a := range all {
			if !a.Status.Terminal() {
				liveBySession[a.SessionID]++
				liveByStaff[a.StaffID]++
			}
		}
		for session, n := range liveBySession {
			require.LessOrEqual(t, n, 1, session)
		}
		for _, id := range []string{"a", "b", "c"} {
			require.Equal(t, liveByStaff[id], f.load(t, id), id)
		}
	}
}
