package dao

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrManualAssignmentNotFound = errors.New("manual assignment not found")
	ErrPrefillQuotaNotFound     = errors.New("prefill quota not found")
)

// ManualAssignment is a pin: one per student per event.
type ManualAssignment struct {
	ID         uint `gorm:"primaryKey"`
	EventID    uint `gorm:"not null;uniqueIndex:idx_manual_assignments_event_student"`
	StudentID  uint `gorm:"not null;uniqueIndex:idx_manual_assignments_event_student"`
	PositionID uint `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type PrefillQuota struct {
	ID         uint `gorm:"primaryKey"`
	EventID    uint `gorm:"not null;index"`
	PositionID uint `gorm:"not null;uniqueIndex"`
	CompanyID  uint `gorm:"not null;index"`
	Slots      int  `gorm:"not null"`
	Percentage int  `gorm:"not null;check:percentage BETWEEN 0 AND 100"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type SettingsDAO struct {
	db *gorm.DB
}

func NewSettingsDAO(db *gorm.DB) *SettingsDAO {
	return &SettingsDAO{
		db: db,
	}
}

// UpsertManualAssignment replaces the student's pin for the event, if any.
func (d *SettingsDAO) UpsertManualAssignment(ctx context.Context, pin ManualAssignment) (ManualAssignment, error) {
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "student_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position_id", "updated_at"}),
		}).
		Create(&pin)
	if result.Error != nil {
		return ManualAssignment{}, result.Error
	}

	return pin, nil
}

func (d *SettingsDAO) DeleteManualAssignment(ctx context.Context, eventID, studentID uint) error {
	result := d.db.WithContext(ctx).
		Where("event_id = ? AND student_id = ?", eventID, studentID).
		Delete(&ManualAssignment{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrManualAssignmentNotFound
	}

	return nil
}

func (d *SettingsDAO) FindManualAssignmentsByEvent(ctx context.Context, eventID uint) ([]ManualAssignment, error) {
	var pins []ManualAssignment

	result := d.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&pins)
	if result.Error != nil {
		return nil, result.Error
	}

	return pins, nil
}

// UpsertPrefillQuota keeps a single quota per position.
func (d *SettingsDAO) UpsertPrefillQuota(ctx context.Context, quota PrefillQuota) (PrefillQuota, error) {
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "position_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"event_id", "company_id", "slots", "percentage", "updated_at"}),
		}).
		Create(&quota)
	if result.Error != nil {
		return PrefillQuota{}, result.Error
	}

	return quota, nil
}

// DeletePrefillQuotasByCompany removes every quota of the company and
// returns how many were deleted.
func (d *SettingsDAO) DeletePrefillQuotasByCompany(ctx context.Context, eventID, companyID uint) (int64, error) {
	result := d.db.WithContext(ctx).
		Where("event_id = ? AND company_id = ?", eventID, companyID).
		Delete(&PrefillQuota{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrPrefillQuotaNotFound
	}

	return result.RowsAffected, nil
}

func (d *SettingsDAO) FindPrefillQuotasByEvent(ctx context.Context, eventID uint) ([]PrefillQuota, error) {
	var quotas []PrefillQuota

	result := d.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&quotas)
	if result.Error != nil {
		return nil, result.Error
	}

	return quotas, nil
}
