package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/repository"
)

type handoffFixture struct {
	stores    repository.Stores
	directory *StaffDirectory
	queue     *Queue
	ledger    *AssignmentLedger
	assigner  *AutoAssigner
	sessions  *SessionStore
}

func newFixture(t *testing.T) *handoffFixture {
	t.Helper()
	stores := repository.NewMemoryStores()
	directory := NewStaffDirectory(repository.NewStaffRepository(stores.Staff), nil)
	queue := NewQueue(stores.Queue, nil)
	ledger := NewAssignmentLedger(stores.Assignments, directory, queue, nil)
	return &handoffFixture{
		stores:    stores,
		directory: directory,
		queue:     queue,
		ledger:    ledger,
		assigner:  NewAutoAssigner(queue, directory, ledger, nil),
		sessions:  NewSessionStore(stores.Sessions, stores.Transcripts, nil),
	}
}

func (f *handoffFixture) addStaff(t *testing.T, id string, maxChats int, status domain.StaffStatus) {
	t.Helper()
	require.NoError(t, f.directory.Register(context.Background(), &domain.StaffMember{
		ID:                 id,
		Name:               "Staff " + id,
		Email:              id + "@example.com",
		Role:               domain.StaffRoleAgent,
		Status:             status,
		MaxConcurrentChats: maxChats,
	}))
}

func (f *handoffFixture) load(t *testing.T, id string) int {
	t.Helper()
	staff, err := f.directory.Get(context.Background(), id)
	require.NoError(t, err)
	return staff.CurrentChatCount
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	return func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
}
