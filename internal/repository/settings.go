package repository

import (
	"context"
	"fmt"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/repository/dao"
)

var (
	ErrManualAssignmentNotFound = dao.ErrManualAssignmentNotFound
	ErrPrefillQuotaNotFound     = dao.ErrPrefillQuotaNotFound
)

type SettingsDAO interface {
	UpsertManualAssignment(ctx context.Context, pin dao.ManualAssignment) (dao.ManualAssignment, error)
	DeleteManualAssignment(ctx context.Context, eventID, studentID uint) error
	FindManualAssignmentsByEvent(ctx context.Context, eventID uint) ([]dao.ManualAssignment, error)
	UpsertPrefillQuota(ctx context.Context, quota dao.PrefillQuota) (dao.PrefillQuota, error)
	DeletePrefillQuotasByCompany(ctx context.Context, eventID, companyID uint) (int64, error)
	FindPrefillQuotasByEvent(ctx context.Context, eventID uint) ([]dao.PrefillQuota, error)
}

type SettingsRepository struct {
	dao SettingsDAO
}

func NewSettingsRepository(dao SettingsDAO) *SettingsRepository {
	return &SettingsRepository{
		dao: dao,
	}
}

func (r *SettingsRepository) SaveManualAssignment(ctx context.Context, pin domain.ManualAssignment) (domain.ManualAssignment, error) {
	saved, err := r.dao.UpsertManualAssignment(ctx, dao.ManualAssignment{
		EventID:    pin.EventID,
		StudentID:  pin.StudentID,
		PositionID: pin.PositionID,
	})
	if err != nil {
		return domain.ManualAssignment{}, fmt.Errorf("r.dao.UpsertManualAssignment -> %w", err)
	}

	return r.pinDaoToDomain(saved), nil
}

func (r *SettingsRepository) DeleteManualAssignment(ctx context.Context, eventID, studentID uint) error {
	if err := r.dao.DeleteManualAssignment(ctx, eventID, studentID); err != nil {
		return fmt.Errorf("r.dao.DeleteManualAssignment -> %w", err)
	}

	return nil
}

func (r *SettingsRepository) FindManualAssignmentsByEvent(ctx context.Context, eventID uint) ([]domain.ManualAssignment, error) {
	found, err := r.dao.FindManualAssignmentsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindManualAssignmentsByEvent -> %w", err)
	}

	pins := make([]domain.ManualAssignment, len(found))
	for i, p := range found {
		pins[i] = r.pinDaoToDomain(p)
	}

	return pins, nil
}

func (r *SettingsRepository) SavePrefillQuota(ctx context.Context, quota domain.PrefillQuota) (domain.PrefillQuota, error) {
	saved, err := r.dao.UpsertPrefillQuota(ctx, dao.PrefillQuota{
		EventID:    quota.EventID,
		PositionID: quota.PositionID,
		CompanyID:  quota.CompanyID,
		Slots:      quota.Slots,
		Percentage: quota.Percentage,
	})
	if err != nil {
		return domain.PrefillQuota{}, fmt.Errorf("r.dao.UpsertPrefillQuota -> %w", err)
	}

	return r.quotaDaoToDomain(saved), nil
}

func (r *SettingsRepository) DeletePrefillQuotasByCompany(ctx context.Context, eventID, companyID uint) (int64, error) {
	n, err := r.dao.DeletePrefillQuotasByCompany(ctx, eventID, companyID)
	if err != nil {
		return 0, fmt.Errorf("r.dao.DeletePrefillQuotasByCompany -> %w", err)
	}

	return n, nil
}

func (r *SettingsRepository) FindPrefillQuotasByEvent(ctx context.Context, eventID uint) ([]domain.PrefillQuota, error) {
	found, err := r.dao.FindPrefillQuotasByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindPrefillQuotasByEvent -> %w", err)
	}

	quotas := make([]domain.PrefillQuota, len(found))
	for i, q := range found {
		quotas[i] = r.quotaDaoToDomain(q)
	}

	return quotas, nil
}

func (r *SettingsRepository) pinDaoToDomain(p dao.ManualAssignment) domain.ManualAssignment {
	return domain.ManualAssignment{
		ID:         p.ID,
		EventID:    p.EventID,
		StudentID:  p.StudentID,
		PositionID: p.PositionID,
		CreatedAt:  p.CreatedAt,
	}
}

func (r *SettingsRepository) quotaDaoToDomain(q dao.PrefillQuota) domain.PrefillQuota {
	return domain.PrefillQuota{
		ID:         q.ID,
		EventID:    q.EventID,
		PositionID: q.PositionID,
		CompanyID:  q.CompanyID,
		Slots:      q.Slots,
		Percentage: q.Percentage,
		UpdatedAt:  q.UpdatedAt,
	}
}
