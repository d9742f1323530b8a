package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
)

func TestStaffLoadStaysWithinBounds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)

	ops := []bool{true, true, true, false, false, false, true, false, true, true, true}
	for _, inc := range ops {
		if inc {
			_, err := f.directory.IncrementLoad(ctx, "a")
			if err != nil {
				require.True(t, apperrors.IsCode(err, apperrors.CodeCapacityExceeded))
			}
		} else {
			require.NoError(t, f.directory.DecrementLoad(ctx, "a"))
		}
		load := f.load(t, "a")
		require.GreaterOrEqual(t, load, 0)
		require.LessOrEqual(t, load, 2)
	}
}

func TestStaffConcurrentIncrementsNeverExceedCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 3, domain.StaffStatusOnline)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.directory.IncrementLoad(ctx, "a"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 3, succeeded)
	require.Equal(t, 3, f.load(t, "a"))
}

func TestStaffDirectoryUnknownStaff(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.directory.SetStatus(ctx, "ghost", domain.StaffStatusOnline)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
	require.NoError(t, f.directory.DecrementLoad(ctx, "ghost"))
}

func TestStaffRegisterRejectsBadLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	err := f.directory.Register(ctx, &domain.StaffMember{ID: "x", MaxConcurrentChats: 1, CurrentChatCount: 2})
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	f.addStaff(t, "y", 2, domain.StaffStatusOnline)
	_, err = f.directory.IncrementLoad(ctx, "y")
	require.NoError(t, err)
	_, err = f.directory.IncrementLoad(ctx, "y")
	require.NoError(t, err)
	_, err = f.directory.SetCapacity(ctx, "y", 1)
	require.True(t, apperrors.IsCode(err, apperrors.CodeValidation))
}

func TestListAvailableOrdersByLoadThenID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "c", 3, domain.StaffStatusOnline)
	f.addStaff(t, "b", 3, domain.StaffStatusOnline)
	f.addStaff(t, "a", 3, domain.StaffStatusOnline)
	f.addStaff(t, "away", 3, domain.StaffStatusAway)
	f.addStaff(t, "full", 1, domain.StaffStatusOnline)

	_, err := f.directory.IncrementLoad(ctx, "a")
	require.NoError(t, err)
	_, err = f.directory.IncrementLoad(ctx, "full")
	require.NoError(t, err)

	available, err := f.directory.ListAvailable(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(available))
	for _, s := range available {
		ids = append(ids, s.ID)
	}
	require.Equal(t, []string{"b", "c", "a"}, ids)
}

func TestTransferLoadToFullTargetLeavesCountsUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 2, domain.StaffStatusOnline)
	f.addStaff(t, "b", 1, domain.StaffStatusOnline)
	_, err := f.directory.IncrementLoad(ctx, "a")
	require.NoError(t, err)
	_, err = f.directory.IncrementLoad(ctx, "b")
	require.NoError(t, err)

	err = f.directory.TransferLoad(ctx, "a", "b")
	require.True(t, apperrors.IsCode(err, apperrors.CodeCapacityExceeded))
	require.Equal(t, 1, f.load(t, "a"))
	require.Equal(t, 1, f.load(t, "b"))
}

func TestOpposingTransfersDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addStaff(t, "a", 50, domain.StaffStatusOnline)
	f.addStaff(t, "b", 50, domain.StaffStatusOnline)
	for i := 0; i < 25; i++ {
		_, err := f.directory.IncrementLoad(ctx, "a")
		require.NoError(t, err)
		_, err = f.directory.IncrementLoad(ctx, "b")
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = f.directory.TransferLoad(ctx, "a", "b")
		}()
		go func() {
			defer wg.Done()
			_ = f.directory.TransferLoad(ctx, "b", "a")
		}()
	}
	wg.Wait()
	require.Equal(t, 50, f.load(t, "a")+f.load(t, "b"))
}
