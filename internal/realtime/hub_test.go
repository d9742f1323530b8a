package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

func TestHubBindsRoleOnce(t *testing.T) {
	hub := NewHub(nil)
	conn := newFakeConn("c1")
	hub.Register(conn)
	require.Equal(t, Unauthenticated{}, hub.Role("c1"))

	require.NoError(t, hub.Bind(conn, Staff{StaffID: "a"}))
	err := hub.Bind(conn, Customer{SessionID: "s1"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
	require.Equal(t, Staff{StaffID: "a"}, hub.Role("c1"))
}

func TestHubRoutesByIdentity(t *testing.T) {
	hub := NewHub(nil)
	tab1, tab2 := newFakeConn("t1"), newFakeConn("t2")
	other := newFakeConn("o")
	customer := newFakeConn("c")
	for _, c := range []*fakeConn{tab1, tab2, other, customer} {
		hub.Register(c)
	}
	require.NoError(t, hub.Bind(tab1, Staff{StaffID: "a"}))
	require.NoError(t, hub.Bind(tab2, Staff{StaffID: "a"}))
	require.NoError(t, hub.Bind(other, Staff{StaffID: "b"}))
	require.NoError(t, hub.Bind(customer, Customer{SessionID: "s1"}))

	require.Equal(t, 2, hub.SendToStaff("a", Frame{Event: "x"}))
	require.Equal(t, 1, hub.SendToSession("s1", Frame{Event: "y"}))
	require.Equal(t, 1, hub.BroadcastStaff(Frame{Event: "z"}, "a"))

	staff, customers := hub.Counts()
	require.Equal(t, 3, staff)
	require.Equal(t, 1, customers)

	require.Equal(t, Staff{StaffID: "a"}, hub.Unregister("t1"))
	require.True(t, hub.StaffOnline("a"))
	hub.Unregister("t2")
	require.False(t, hub.StaffOnline("a"))
}
