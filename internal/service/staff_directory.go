package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/handoffdesk/chat-handoff/internal/domain"
	"github.com/handoffdesk/chat-handoff/internal/repository"
	apperrors "github.com/handoffdesk/chat-handoff/pkg/util/errorutil"
	"github.com/handoffdesk/chat-handoff/pkg/util/keylock"
)

// StaffDirectory owns staff presence and chat load. Every read-modify-write of a
// staff record happens under that staff member's lock.
type StaffDirectory struct {
	repo   repository.StaffRepository
	locks  *keylock.KeyLock
	logger *zap.Logger
	now    func() time.Time
}

// NewStaffDirectory constructs the directory.
func NewStaffDirectory(repo repository.StaffRepository, logger *zap.Logger) *StaffDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffDirectory{
		repo:   repo,
		locks:  keylock.New(),
		logger: logger,
		now:    time.Now,
	}
}

// Register stores a new staff member, rejecting records that break the load invariant.
func (d *StaffDirectory) Register(ctx context.Context, staff *domain.StaffMember) error {
	if staff.ID == "" {
		return apperrors.NewValidationError("staff id required", nil)
	}
	if err := validateLoad(staff.CurrentChatCount, staff.MaxConcurrentChats); err != nil {
		return err
	}
	if staff.Status == "" {
		staff.Status = domain.StaffStatusOffline
	}
	if !staff.Status.Valid() {
		return apperrors.NewValidationError("invalid status", map[string]any{"status": staff.Status})
	}

	unlock := d.locks.Lock(staff.ID)
	defer unlock()

	if _, err := d.repo.GetByID(ctx, staff.ID); err == nil {
		return apperrors.NewConflict("staff already exists", map[string]any{"staff_id": staff.ID})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.MapError(err)
	}

	now := d.now()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	staff.LastActive = now
	if err := d.repo.Create(ctx, staff); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// Get returns a staff member by id.
func (d *StaffDirectory) Get(ctx context.Context, staffID string) (*domain.StaffMember, error) {
	staff, err := d.repo.GetByID(ctx, staffID)
	if err != nil {
		return nil, notFoundOr(err, "staff", map[string]any{"staff_id": staffID})
	}
	return staff, nil
}

// List returns every staff member ordered by id.
func (d *StaffDirectory) List(ctx context.Context) ([]domain.StaffMember, error) {
	staff, err := d.repo.List(ctx, repository.StaffFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// SetStatus updates presence and touches LastActive. It returns the previous status.
func (d *StaffDirectory) SetStatus(ctx context.Context, staffID string, status domain.StaffStatus) (domain.StaffStatus, error) {
	if !status.Valid() {
		return "", apperrors.NewValidationError("invalid status", map[string]any{"status": status})
	}

	unlock := d.locks.Lock(staffID)
	defer unlock()

	staff, err := d.repo.GetByID(ctx, staffID)
	if err != nil {
		return "", notFoundOr(err, "staff", map[string]any{"staff_id": staffID})
	}
	old := staff.Status
	staff.Status = status
	staff.LastActive = d.now()
	staff.UpdatedAt = staff.LastActive
	if err := d.repo.Update(ctx, staff); err != nil {
		return "", apperrors.MapError(err)
	}
	if old != status {
		d.logger.Info("staff status changed",
			zap.String("staff_id", staffID),
			zap.String("old_status", string(old)),
			zap.String("new_status", string(status)))
	}
	return old, nil
}

// SetCapacity changes MaxConcurrentChats. Lowering it below the live load is rejected.
func (d *StaffDirectory) SetCapacity(ctx context.Context, staffID string, maxChats int) (*domain.StaffMember, error) {
	unlock := d.locks.Lock(staffID)
	defer unlock()

	staff, err := d.repo.GetByID(ctx, staffID)
	if err != nil {
		return nil, notFoundOr(err, "staff", map[string]any{"staff_id": staffID})
	}
	if err := validateLoad(staff.CurrentChatCount, maxChats); err != nil {
		return nil, err
	}
	staff.MaxConcurrentChats = maxChats
	staff.UpdatedAt = d.now()
	if err := d.repo.Update(ctx, staff); err != nil {
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

// IncrementLoad takes one chat slot, failing with CAPACITY_EXCEEDED when full.
func (d *StaffDirectory) IncrementLoad(ctx context.Context, staffID string) (*domain.StaffMember, error) {
	unlock := d.locks.Lock(staffID)
	defer unlock()
	return d.incrementLocked(ctx, staffID)
}

// DecrementLoad releases one chat slot. Unknown staff is treated as already released.
func (d *StaffDirectory) DecrementLoad(ctx context.Context, staffID string) error {
	unlock := d.locks.Lock(staffID)
	defer unlock()
	return d.decrementLocked(ctx, staffID)
}

// TransferLoad moves one chat slot from one staff member to another while holding
// both locks (taken in id order). The source is decremented first; if the target
// cannot take the chat the decrement is compensated. A failed compensation is
// reported as TRANSFER_FAILED because the counts are no longer balanced.
func (d *StaffDirectory) TransferLoad(ctx context.Context, fromStaffID, toStaffID string) error {
	if fromStaffID == toStaffID {
		return nil
	}
	unlock := d.locks.LockMany(fromStaffID, toStaffID)
	defer unlock()

	target, err := d.repo.GetByID(ctx, toStaffID)
	if err != nil {
		return notFoundOr(err, "staff", map[string]any{"staff_id": toStaffID})
	}
	if target.CurrentChatCount >= target.MaxConcurrentChats {
		return apperrors.NewCapacityExceeded(toStaffID)
	}

	if err := d.decrementLocked(ctx, fromStaffID); err != nil {
		return err
	}
	if _, err := d.incrementLocked(ctx, toStaffID); err != nil {
		if _, rbErr := d.incrementLocked(ctx, fromStaffID); rbErr != nil {
			d.logger.Error("transfer rollback failed",
				zap.String("from_staff_id", fromStaffID),
				zap.String("to_staff_id", toStaffID),
				zap.Error(rbErr))
			return apperrors.NewTransferFailed(rbErr, map[string]any{
				"from_staff_id": fromStaffID,
				"to_staff_id":   toStaffID,
			})
		}
		return err
	}
	return nil
}

// ListAvailable returns online staff with spare capacity, least loaded first and
// then by id, which is the routing order.
func (d *StaffDirectory) ListAvailable(ctx context.Context) ([]domain.StaffMember, error) {
	online := domain.StaffStatusOnline
	staff, err := d.repo.List(ctx, repository.StaffFilter{Status: &online})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	available := make([]domain.StaffMember, 0, len(staff))
	for i := range staff {
		if staff[i].Available() {
			available = append(available, staff[i])
		}
	}
	sort.SliceStable(available, func(i, j int) bool {
		if available[i].CurrentChatCount != available[j].CurrentChatCount {
			return available[i].CurrentChatCount < available[j].CurrentChatCount
		}
		return available[i].ID < available[j].ID
	})
	return available, nil
}

func (d *StaffDirectory) incrementLocked(ctx context.Context, staffID string) (*domain.StaffMember, error) {
	staff, err := d.repo.GetByID(ctx, staffID)
	if err != nil {
		return nil, notFoundOr(err, "staff", map[string]any{"staff_id": staffID})
	}
	if staff.CurrentChatCount >= staff.MaxConcurrentChats {
		return nil, apperrors.NewCapacityExceeded(staffID)
	}
	staff.CurrentChatCount++
	staff.UpdatedAt = d.now()
	if err := d.repo.Update(ctx, staff); err != nil {
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}

func (d *StaffDirectory) decrementLocked(ctx context.Context, staffID string) error {
	staff, err := d.repo.GetByID(ctx, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return apperrors.MapError(err)
	}
	if staff.CurrentChatCount == 0 {
		return nil
	}
	staff.CurrentChatCount--
	staff.UpdatedAt = d.now()
	if err := d.repo.Update(ctx, staff); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func validateLoad(current, maxChats int) error {
	if maxChats < 0 || current < 0 || current > maxChats {
		return apperrors.NewValidationError("chat load out of bounds", map[string]any{
			"current_chat_count":   current,
			"max_concurrent_chats": maxChats,
		})
	}
	return nil
}

func notFoundOr(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}
