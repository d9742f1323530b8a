package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	role := domain.StaffRoleSupervisor

	token, exp, err := tm.GenerateToken("staff-1", domain.SubjectTypeStaff, &role)
	require.NoError(t, err)
	require.False(t, exp.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.Equal(t, "staff-1", claims.SubjectID)
	require.Equal(t, domain.SubjectTypeStaff, claims.Subject)
	require.Equal(t, role, *claims.Role)
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	token, _, err := NewTokenManager("one", 5).GenerateToken("staff-1", domain.SubjectTypeStaff, nil)
	require.NoError(t, err)

	_, err = NewTokenManager("two", 5).ParseToken(token)
	require.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2", 4)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hash, "hunter2"))
	require.ErrorIs(t, ComparePassword(hash, "hunter3"), ErrPasswordMismatch)
	require.ErrorIs(t, ComparePassword("", "hunter2"), ErrPasswordMismatch)

	hash, err = HashPassword("hunter2", 99)
	require.NoError(t, err)
	require.NoError(t, ComparePassword(hash, "hunter2"))

	_, err = HashPassword(strings.Repeat("x", 73), 4)
	require.ErrorIs(t, err, ErrPasswordTooLong)
}
