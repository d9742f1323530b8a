package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

func TestSessionMessagesAreSequenced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.sessions.CreateSession(ctx, map[string]string{"plan": "pro"})
	require.NoError(t, err)
	require.Equal(t, domain.SessionActive, session.Status)

	for _, text := range []string{"one", "two", "three"} {
		_, err := f.sessions.AddMessage(ctx, session.ID, text, domain.RoleCustomer, nil)
		require.NoError(t, err)
	}
	history, err := f.sessions.History(ctx, session.ID, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, "two", history[0].Content)
	require.Equal(t, int64(3), history[1].Seq)

	_, err = f.sessions.AddMessage(ctx, session.ID, "  ", domain.RoleCustomer, nil)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
	_, err = f.sessions.AddMessage(ctx, "missing", "hi", domain.RoleCustomer, nil)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestSessionStatusTracksStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session, err := f.sessions.CreateSession(ctx, nil)
	require.NoError(t, err)

	updated, err := f.sessions.UpdateStatus(ctx, session.ID, domain.SessionWithStaff, "a")
	require.NoError(t, err)
	require.Equal(t, "a", updated.AssignedStaffID)

	updated, err = f.sessions.UpdateStatus(ctx, session.ID, domain.SessionResolved, "a")
	require.NoError(t, err)
	require.Empty(t, updated.AssignedStaffID)
	require.NotNil(t, updated.ResolvedAt)

	resolved, err := f.sessions.ListByStatus(ctx, domain.SessionResolved)
	require.NoError(t, err)
	require.Len(t, resolved, 1)

	history, err := f.sessions.History(ctx, session.ID, 0)
	require.NoError(t, err)
	require.Empty(t, history)
}
