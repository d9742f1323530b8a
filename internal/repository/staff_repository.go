package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/handoffdesk/chat-handoff/internal/domain"
)

// StaffRepository handles persistence for staff members.
type StaffRepository interface {
	Create(ctx context.Context, staff *domain.StaffMember) error
	Update(ctx context.Context, staff *domain.StaffMember) error
	GetByID(ctx context.Context, id string) (*domain.StaffMember, error)
	GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error)
	List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error)
}

// StaffFilter defines query params for staff listing.
type StaffFilter struct {
	Role   *domain.StaffRole
	Status *domain.StaffStatus
	Limit  int
	Offset int
}

type staffRepository struct {
	store Store[domain.StaffMember]
}

// NewStaffRepository instantiates the repository over a store.
func NewStaffRepository(store Store[domain.StaffMember]) StaffRepository {
	return &staffRepository{store: store}
}

func (r *staffRepository) Create(ctx context.Context, staff *domain.StaffMember) error {
	return r.store.Put(ctx, staff.ID, *staff)
}

func (r *staffRepository) Update(ctx context.Context, staff *domain.StaffMember) error {
	if _, err := r.store.Get(ctx, staff.ID); err != nil {
		return err
	}
	return r.store.Put(ctx, staff.ID, *staff)
}

func (r *staffRepository) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	staff, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &staff, nil
}

func (r *staffRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	all, err := r.store.Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if strings.EqualFold(all[i].Email, email) {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

func (r *staffRepository) List(ctx context.Context, filter StaffFilter) ([]domain.StaffMember, error) {
	all, err := r.store.Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.StaffMember, 0, len(all))
	for _, staff := range all {
		if filter.Role != nil && staff.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && staff.Status != *filter.Status {
			continue
		}
		result = append(result, staff)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return []domain.StaffMember{}, nil
	}
	result = result[offset:]
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}
