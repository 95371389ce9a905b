package dao

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrEventNotFound    = errors.New("event not found")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrPositionNotFound = errors.New("position not found")
	ErrStudentNotFound  = errors.New("student not found")
)

// The catalog tables are owned by the admin application. This service
// only reads them.

type Event struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"not null"`
	SchoolYear string `gorm:"not null"`
	Active     bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Company struct {
	ID           uint   `gorm:"primaryKey"`
	EventID      uint   `gorm:"not null;index"`
	Name         string `gorm:"not null"`
	ContactName  string
	ContactEmail string
	ContactPhone string

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Position struct {
	ID           uint    `gorm:"primaryKey"`
	EventID      uint    `gorm:"not null;index"`
	CompanyID    uint    `gorm:"not null;index"`
	Company      Company `gorm:"foreignKey:CompanyID"`
	Title        string  `gorm:"not null"`
	Description  string
	Location     string
	Schedule     string
	ContactName  string
	ContactEmail string
	ContactPhone string
	Slots        int  `gorm:"not null;default:0;check:slots >= 0"`
	Published    bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type Student struct {
	ID        uint   `gorm:"primaryKey"`
	FirstName string `gorm:"not null"`
	LastName  string `gorm:"not null"`
	Email     string `gorm:"index"`
	Grade     int    `gorm:"not null"`
	Active    bool   `gorm:"not null"`
	Graduated bool   `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Preference ids grow with insertion, so ordering by id yields the
// stored order of a student's choices.
type Preference struct {
	ID         uint `gorm:"primaryKey"`
	EventID    uint `gorm:"not null;index"`
	StudentID  uint `gorm:"not null;uniqueIndex:idx_preferences_student_position"`
	PositionID uint `gorm:"not null;uniqueIndex:idx_preferences_student_position"`
	Rank       int  `gorm:"not null;check:rank >= 1"`

	CreatedAt time.Time `gorm:"not null"`
}

// SnapshotRows is everything a draw reads, taken in one transaction.
type SnapshotRows struct {
	Event       Event
	Positions   []Position
	Students    []Student
	Preferences []Preference
	Pins        []ManualAssignment
	Quotas      []PrefillQuota
}

type CatalogDAO struct {
	db *gorm.DB
}

func NewCatalogDAO(db *gorm.DB) *CatalogDAO {
	return &CatalogDAO{
		db: db,
	}
}

func (d *CatalogDAO) FindEventByID(ctx context.Context, id uint) (Event, error) {
	var event Event

	result := d.db.WithContext(ctx).First(&event, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Event{}, ErrEventNotFound
		}

		return Event{}, result.Error
	}

	return event, nil
}

func (d *CatalogDAO) FindCompaniesByEvent(ctx context.Context, eventID uint) ([]Company, error) {
	var companies []Company

	result := d.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&companies)
	if result.Error != nil {
		return nil, result.Error
	}

	return companies, nil
}

func (d *CatalogDAO) FindCompanyByID(ctx context.Context, id uint) (Company, error) {
	var company Company

	result := d.db.WithContext(ctx).First(&company, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Company{}, ErrCompanyNotFound
		}

		return Company{}, result.Error
	}

	return company, nil
}

func (d *CatalogDAO) FindPositionByID(ctx context.Context, id uint) (Position, error) {
	var position Position

	result := d.db.WithContext(ctx).Preload("Company").First(&position, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Position{}, ErrPositionNotFound
		}

		return Position{}, result.Error
	}

	return position, nil
}

func (d *CatalogDAO) FindPositionsByEvent(ctx context.Context, eventID uint) ([]Position, error) {
	var positions []Position

	result := d.db.WithContext(ctx).
		Preload("Company").
		Where("event_id = ?", eventID).
		Order("id").
		Find(&positions)
	if result.Error != nil {
		return nil, result.Error
	}

	return positions, nil
}

func (d *CatalogDAO) FindStudentByID(ctx context.Context, id uint) (Student, error) {
	var student Student

	result := d.db.WithContext(ctx).First(&student, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return Student{}, ErrStudentNotFound
		}

		return Student{}, result.Error
	}

	return student, nil
}

func (d *CatalogDAO) FindStudentsByIDs(ctx context.Context, ids []uint) ([]Student, error) {
	if len(ids) == 0 {
		return []Student{}, nil
	}

	var students []Student

	result := d.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&students)
	if result.Error != nil {
		return nil, result.Error
	}

	return students, nil
}

func (d *CatalogDAO) FindPreferencesByEvent(ctx context.Context, eventID uint) ([]Preference, error) {
	var prefs []Preference

	result := d.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id").Find(&prefs)
	if result.Error != nil {
		return nil, result.Error
	}

	return prefs, nil
}

// LoadSnapshot reads the draw inputs of an event inside one read-only
// repeatable-read transaction so concurrent edits are never half seen.
// Only published positions and active, non-graduated students are
// returned, with the preferences and quotas that reference them. Pins are
// returned unfiltered.
func (d *CatalogDAO) LoadSnapshot(ctx context.Context, eventID uint) (SnapshotRows, error) {
	var rows SnapshotRows

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rows.Event, eventID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEventNotFound
			}
			return err
		}

		if err := tx.
			Preload("Company").
			Where("event_id = ? AND published", eventID).
			Order("id").
			Find(&rows.Positions).Error; err != nil {
			return err
		}

		if err := tx.
			Where("active AND NOT graduated").
			Order("id").
			Find(&rows.Students).Error; err != nil {
			return err
		}

		if err := tx.
			Joins("JOIN positions ON positions.id = preferences.position_id AND positions.published").
			Joins("JOIN students ON students.id = preferences.student_id AND students.active AND NOT students.graduated").
			Where("preferences.event_id = ?", eventID).
			Order("preferences.id").
			Find(&rows.Preferences).Error; err != nil {
			return err
		}

		if err := tx.Where("event_id = ?", eventID).Order("id").Find(&rows.Pins).Error; err != nil {
			return err
		}

		return tx.
			Joins("JOIN positions ON positions.id = prefill_quotas.position_id AND positions.published").
			Where("prefill_quotas.event_id = ?", eventID).
			Order("prefill_quotas.id").
			Find(&rows.Quotas).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return SnapshotRows{}, err
	}

	return rows, nil
}
