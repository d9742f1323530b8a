package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/repository"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

var errDiskFull = errors.New("disk full")

// flakyStaffRepository fails scripted Update calls. Each Update for an id
// consumes the head of that id's script; true means fail.
type flakyStaffRepository struct {
	repository.StaffRepository
	mu     sync.Mutex
	script map[string][]bool
}

func (r *flakyStaffRepository) failUpdates(id string, outcomes ...bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.script[id] = outcomes
}

func (r *flakyStaffRepository) Update(ctx context.Context, staff *domain.StaffMember) error {
	r.mu.Lock()
	steps := r.script[staff.ID]
	fail := false
	if len(steps) > 0 {
		fail = steps[0]
		r.script[staff.ID] = steps[1:]
	}
	r.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return r.StaffRepository.Update(ctx, staff)
}

// flakyAssignments fails the next failPuts writes.
type flakyAssignments struct {
	repository.Store[domain.Assignment]
	mu       sync.Mutex
	failPuts int
}

func (s *flakyAssignments) Put(ctx context.Context, key string, value domain.Assignment) error {
	s.mu.Lock()
	fail := s.failPuts > 0
	if fail {
		s.failPuts--
	}
	s.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return s.Store.Put(ctx, key, value)
}

type flakyFixture struct {
	*handoffFixture
	staffRepo   *flakyStaffRepository
	assignments *flakyAssignments
}

func newFlakyFixture(t *testing.T) *flakyFixture {
	t.Helper()
	stores := repository.NewMemoryStores()
	staffRepo := &flakyStaffRepository{
		StaffRepository: repository.NewStaffRepository(stores.Staff),
		script:          map[string][]bool{},
	}
	assignments := &flakyAssignments{Store: stores.Assignments}
	directory := NewStaffDirectory(staffRepo, nil)
	queue := NewQueue(stores.Queue, nil)
	ledger := NewAssignmentLedger(assignments, directory, queue, nil)
	return &flakyFixture{
		handoffFixture: &handoffFixture{
			stores:    stores,
			directory: directory,
			queue:     queue,
			ledger:    ledger,
			assigner:  NewAutoAssigner(queue, directory, ledger, nil),
			sessions:  NewSessionStore(stores.Sessions, stores.Transcripts, nil),
		},
		staffRepo:   staffRepo,
		assignments: assignments,
	}
}

func TestTransferLoadCompensatesFailedIncrement(t *testing.T) {
	ctx := context.Background()
	f := newFlakyFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 2, domain.StaffStatusOnline)
	_, err := f.directory.IncrementLoad(ctx, "a")
	require.NoError(t, err)

	f.staffRepo.failUpdates("b", true)
	err = f.directory.TransferLoad(ctx, "a", "b")
	require.Error(t, err)
	require.False(t, apperrors.IsCode(err, apperrors.CodeTransferFailed))
	require.Equal(t, 1, f.load(t, "a"))
	require.Equal(t, 0, f.load(t, "b"))
}

func TestTransferLoadReportsFailedCompensation(t *testing.T) {
	ctx := context.Background()
	f := newFlakyFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 2, domain.StaffStatusOnline)
	_, err := f.directory.IncrementLoad(ctx, "a")
	require.NoError(t, err)

	// a: decrement succeeds, compensating increment fails. b: increment fails.
	f.staffRepo.failUpdates("a", false, true)
	f.staffRepo.failUpdates("b", true)
	err = f.directory.TransferLoad(ctx, "a", "b")
	require.True(t, apperrors.IsCode(err, apperrors.CodeTransferFailed))
	require.Equal(t, 0, f.load(t, "a"))
	require.Equal(t, 0, f.load(t, "b"))
}

func TestLedgerTransferRollsBackLoadWhenWriteFails(t *testing.T) {
	ctx := context.Background()
	f := newFlakyFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 2, domain.StaffStatusOnline)
	_, _, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)

	f.assignments.failPuts = 1
	assignment, moved, err := f.ledger.Transfer(ctx, "s1", "a", "b")
	require.Error(t, err)
	require.False(t, apperrors.IsCode(err, apperrors.CodeTransferFailed))
	require.False(t, moved)
	require.Equal(t, "a", assignment.StaffID)
	require.Equal(t, 1, f.load(t, "a"))
	require.Equal(t, 0, f.load(t, "b"))

	stored, err := f.ledger.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "a", stored.StaffID)
}

func TestLedgerTransferReportsFailedRollback(t *testing.T) {
	ctx := context.Background()
	f := newFlakyFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 2, domain.StaffStatusOnline)
	_, _, err := f.ledger.Create(ctx, "s1", "a")
	require.NoError(t, err)

	// The forward move succeeds, the assignment write fails, and the
	// rollback cannot release b's slot.
	f.assignments.failPuts = 1
	f.staffRepo.failUpdates("b", false, true)
	_, moved, err := f.ledger.Transfer(ctx, "s1", "a", "b")
	require.True(t, apperrors.IsCode(err, apperrors.CodeTransferFailed))
	require.False(t, moved)

	stored, err := f.ledger.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "a", stored.StaffID)
	require.Equal(t, 0, f.load(t, "a"))
	require.Equal(t, 1, f.load(t, "b"))
}
