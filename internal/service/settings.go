package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/repository"
)

var (
	ErrManualAssignmentNotFound = repository.ErrManualAssignmentNotFound
	ErrPrefillQuotaNotFound     = repository.ErrPrefillQuotaNotFound
	ErrCompanyNotFound          = repository.ErrCompanyNotFound

	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
	ErrInvalidSlots      = errors.New("slots must not be negative")
	ErrCompanyMismatch   = errors.New("position is not offered by this company")
)

type SettingsRepository interface {
	SaveManualAssignment(ctx context.Context, pin domain.ManualAssignment) (domain.ManualAssignment, error)
	DeleteManualAssignment(ctx context.Context, eventID, studentID uint) error
	FindManualAssignmentsByEvent(ctx context.Context, eventID uint) ([]domain.ManualAssignment, error)
	SavePrefillQuota(ctx context.Context, quota domain.PrefillQuota) (domain.PrefillQuota, error)
	DeletePrefillQuotasByCompany(ctx context.Context, eventID, companyID uint) (int64, error)
	FindPrefillQuotasByEvent(ctx context.Context, eventID uint) ([]domain.PrefillQuota, error)
}

type SettingsCatalogRepository interface {
	FindEventByID(ctx context.Context, id uint) (domain.Event, error)
	FindCompanyByID(ctx context.Context, id uint) (domain.Company, error)
	FindPositionByID(ctx context.Context, id uint) (domain.Position, error)
	FindStudentByID(ctx context.Context, id uint) (domain.Student, error)
}

// SettingsService edits the pins and prefill quotas read by the next draw.
// Running or finished jobs never see these edits.
type SettingsService struct {
	repo    SettingsRepository
	catalog SettingsCatalogRepository
}

func NewSettingsService(repo SettingsRepository, catalog SettingsCatalogRepository) *SettingsService {
	return &SettingsService{
		repo:    repo,
		catalog: catalog,
	}
}

// AddManualAssignment pins the student, replacing any earlier pin. The
// student's eligibility is checked by the draw, which reports a skipped
// pin instead of failing.
func (s *SettingsService) AddManualAssignment(ctx context.Context, eventID, studentID, positionID uint) (domain.ManualAssignment, error) {
	if _, err := s.positionInEvent(ctx, eventID, positionID); err != nil {
		return domain.ManualAssignment{}, err
	}

	if _, err := s.catalog.FindStudentByID(ctx, studentID); err != nil {
		return domain.ManualAssignment{}, fmt.Errorf("s.catalog.FindStudentByID -> %w", err)
	}

	pin, err := s.repo.SaveManualAssignment(ctx, domain.ManualAssignment{
		EventID:    eventID,
		StudentID:  studentID,
		PositionID: positionID,
	})
	if err != nil {
		return domain.ManualAssignment{}, fmt.Errorf("s.repo.SaveManualAssignment -> %w", err)
	}

	zap.L().Info("manual assignment saved",
		zap.Uint("event_id", eventID),
		zap.Uint("student_id", studentID),
		zap.Uint("position_id", positionID),
	)

	return pin, nil
}

func (s *SettingsService) RemoveManualAssignment(ctx context.Context, eventID, studentID uint) error {
	if err := s.repo.DeleteManualAssignment(ctx, eventID, studentID); err != nil {
		return fmt.Errorf("s.repo.DeleteManualAssignment -> %w", err)
	}

	return nil
}

func (s *SettingsService) ListManualAssignments(ctx context.Context, eventID uint) ([]domain.ManualAssignment, error) {
	if _, err := s.catalog.FindEventByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("s.catalog.FindEventByID -> %w", err)
	}

	pins, err := s.repo.FindManualAssignmentsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindManualAssignmentsByEvent -> %w", err)
	}

	return pins, nil
}

// SetPrefillQuota stores one quota per position. A zero companyID means
// the position's own company.
func (s *SettingsService) SetPrefillQuota(ctx context.Context, eventID, positionID, companyID uint, slots, percentage int) (domain.PrefillQuota, error) {
	if percentage < 0 || percentage > 100 {
		return domain.PrefillQuota{}, ErrInvalidPercentage
	}
	if slots < 0 {
		return domain.PrefillQuota{}, ErrInvalidSlots
	}

	position, err := s.positionInEvent(ctx, eventID, positionID)
	if err != nil {
		return domain.PrefillQuota{}, err
	}

	if companyID == 0 {
		companyID = position.CompanyID
	}
	if companyID != position.CompanyID {
		return domain.PrefillQuota{}, ErrCompanyMismatch
	}

	quota, err := s.repo.SavePrefillQuota(ctx, domain.PrefillQuota{
		EventID:    eventID,
		PositionID: positionID,
		CompanyID:  companyID,
		Slots:      slots,
		Percentage: percentage,
	})
	if err != nil {
		return domain.PrefillQuota{}, fmt.Errorf("s.repo.SavePrefillQuota -> %w", err)
	}

	zap.L().Info("prefill quota saved",
		zap.Uint("event_id", eventID),
		zap.Uint("position_id", positionID),
		zap.Int("percentage", percentage),
		zap.Int("reserved", quota.Reserved(position.Slots)),
	)

	return quota, nil
}

// RemovePrefillQuota drops every quota of the company and reports how many
// were removed.
func (s *SettingsService) RemovePrefillQuota(ctx context.Context, eventID, companyID uint) (int64, error) {
	company, err := s.catalog.FindCompanyByID(ctx, companyID)
	if err != nil {
		return 0, fmt.Errorf("s.catalog.FindCompanyByID -> %w", err)
	}
	if company.EventID != eventID {
		return 0, ErrCompanyNotFound
	}

	n, err := s.repo.DeletePrefillQuotasByCompany(ctx, eventID, companyID)
	if err != nil {
		return 0, fmt.Errorf("s.repo.DeletePrefillQuotasByCompany -> %w", err)
	}

	return n, nil
}

func (s *SettingsService) ListPrefillQuotas(ctx context.Context, eventID uint) ([]domain.PrefillQuota, error) {
	if _, err := s.catalog.FindEventByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("s.catalog.FindEventByID -> %w", err)
	}

	quotas, err := s.repo.FindPrefillQuotasByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindPrefillQuotasByEvent -> %w", err)
	}

	return quotas, nil
}

func (s *SettingsService) positionInEvent(ctx context.Context, eventID, positionID uint) (domain.Position, error) {
	if _, err := s.catalog.FindEventByID(ctx, eventID); err != nil {
		return domain.Position{}, fmt.Errorf("s.catalog.FindEventByID -> %w", err)
	}

	position, err := s.catalog.FindPositionByID(ctx, positionID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("s.catalog.FindPositionByID -> %w", err)
	}
	if position.EventID != eventID {
		return domain.Position{}, ErrPositionNotInEvent
	}

	return position, nil
}
