package repository

import (
	"context"
	"fmt"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/lottery"
	"github.com/vietanh2810/jobshadow-api/internal/repository/dao"
)

var (
	ErrEventNotFound    = dao.ErrEventNotFound
	ErrCompanyNotFound  = dao.ErrCompanyNotFound
	ErrPositionNotFound = dao.ErrPositionNotFound
	ErrStudentNotFound  = dao.ErrStudentNotFound
)

type CatalogDAO interface {
	FindEventByID(ctx context.Context, id uint) (dao.Event, error)
	FindCompanyByID(ctx context.Context, id uint) (dao.Company, error)
	FindCompaniesByEvent(ctx context.Context, eventID uint) ([]dao.Company, error)
	FindPositionByID(ctx context.Context, id uint) (dao.Position, error)
	FindPositionsByEvent(ctx context.Context, eventID uint) ([]dao.Position, error)
	FindStudentByID(ctx context.Context, id uint) (dao.Student, error)
	FindStudentsByIDs(ctx context.Context, ids []uint) ([]dao.Student, error)
	FindPreferencesByEvent(ctx context.Context, eventID uint) ([]dao.Preference, error)
	LoadSnapshot(ctx context.Context, eventID uint) (dao.SnapshotRows, error)
}

type CatalogRepository struct {
	dao CatalogDAO
}

func NewCatalogRepository(dao CatalogDAO) *CatalogRepository {
	return &CatalogRepository{
		dao: dao,
	}
}

func (r *CatalogRepository) FindEventByID(ctx context.Context, id uint) (domain.Event, error) {
	found, err := r.dao.FindEventByID(ctx, id)
	if err != nil {
		return domain.Event{}, fmt.Errorf("r.dao.FindEventByID -> %w", err)
	}

	return domain.Event{
		ID:         found.ID,
		Name:       found.Name,
		SchoolYear: found.SchoolYear,
		Active:     found.Active,
		CreatedAt:  found.CreatedAt,
		UpdatedAt:  found.UpdatedAt,
	}, nil
}

func (r *CatalogRepository) FindCompanyByID(ctx context.Context, id uint) (domain.Company, error) {
	found, err := r.dao.FindCompanyByID(ctx, id)
	if err != nil {
		return domain.Company{}, fmt.Errorf("r.dao.FindCompanyByID -> %w", err)
	}

	return r.companyDaoToDomain(found), nil
}

func (r *CatalogRepository) FindCompaniesByEvent(ctx context.Context, eventID uint) ([]domain.Company, error) {
	found, err := r.dao.FindCompaniesByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindCompaniesByEvent -> %w", err)
	}

	companies := make([]domain.Company, len(found))
	for i, c := range found {
		companies[i] = r.companyDaoToDomain(c)
	}

	return companies, nil
}

func (r *CatalogRepository) FindPositionByID(ctx context.Context, id uint) (domain.Position, error) {
	found, err := r.dao.FindPositionByID(ctx, id)
	if err != nil {
		return domain.Position{}, fmt.Errorf("r.dao.FindPositionByID -> %w", err)
	}

	return r.positionDaoToDomain(found), nil
}

func (r *CatalogRepository) FindPositionsByEvent(ctx context.Context, eventID uint) ([]domain.Position, error) {
	found, err := r.dao.FindPositionsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindPositionsByEvent -> %w", err)
	}

	positions := make([]domain.Position, len(found))
	for i, p := range found {
		positions[i] = r.positionDaoToDomain(p)
	}

	return positions, nil
}

func (r *CatalogRepository) FindStudentByID(ctx context.Context, id uint) (domain.Student, error) {
	found, err := r.dao.FindStudentByID(ctx, id)
	if err != nil {
		return domain.Student{}, fmt.Errorf("r.dao.FindStudentByID -> %w", err)
	}

	return r.studentDaoToDomain(found), nil
}

func (r *CatalogRepository) FindStudentsByIDs(ctx context.Context, ids []uint) ([]domain.Student, error) {
	found, err := r.dao.FindStudentsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindStudentsByIDs -> %w", err)
	}

	students := make([]domain.Student, len(found))
	for i, s := range found {
		students[i] = r.studentDaoToDomain(s)
	}

	return students, nil
}

func (r *CatalogRepository) FindPreferencesByEvent(ctx context.Context, eventID uint) ([]domain.Preference, error) {
	found, err := r.dao.FindPreferencesByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindPreferencesByEvent -> %w", err)
	}

	prefs := make([]domain.Preference, len(found))
	for i, p := range found {
		prefs[i] = domain.Preference{
			ID:         p.ID,
			EventID:    p.EventID,
			StudentID:  p.StudentID,
			PositionID: p.PositionID,
			Rank:       p.Rank,
		}
	}

	return prefs, nil
}

// LoadSnapshot freezes the draw input of an event together with the
// details of every drawable position, read in the same transaction.
func (r *CatalogRepository) LoadSnapshot(ctx context.Context, eventID uint, order domain.GradeOrder) (lottery.Snapshot, map[uint]domain.PositionSnapshot, error) {
	rows, err := r.dao.LoadSnapshot(ctx, eventID)
	if err != nil {
		return lottery.Snapshot{}, nil, fmt.Errorf("r.dao.LoadSnapshot -> %w", err)
	}

	details := make(map[uint]domain.PositionSnapshot, len(rows.Positions))
	for _, p := range rows.Positions {
		details[p.ID] = domain.SnapshotOf(r.positionDaoToDomain(p))
	}

	return buildSnapshot(rows, order), details, nil
}

func buildSnapshot(rows dao.SnapshotRows, order domain.GradeOrder) lottery.Snapshot {
	snap := lottery.Snapshot{
		EventID:    rows.Event.ID,
		GradeOrder: order,
		Students:   make([]lottery.Student, 0, len(rows.Students)),
		Positions:  make([]lottery.Position, 0, len(rows.Positions)),
		Pins:       make([]lottery.Pin, 0, len(rows.Pins)),
		Quotas:     make([]lottery.Quota, 0, len(rows.Quotas)),
	}

	for _, p := range rows.Positions {
		snap.Positions = append(snap.Positions, lottery.Position{ID: p.ID, Slots: p.Slots})
	}

	// rows.Preferences is in id order, which is the stored order.
	byStudent := make(map[uint][]lottery.Preference, len(rows.Students))
	for _, p := range rows.Preferences {
		byStudent[p.StudentID] = append(byStudent[p.StudentID], lottery.Preference{
			PositionID: p.PositionID,
			Rank:       p.Rank,
		})
	}

	for _, s := range rows.Students {
		prefs := byStudent[s.ID]
		if prefs == nil {
			prefs = []lottery.Preference{}
		}
		snap.Students = append(snap.Students, lottery.Student{
			ID:          s.ID,
			Grade:       s.Grade,
			Preferences: prefs,
		})
	}

	for _, pin := range rows.Pins {
		snap.Pins = append(snap.Pins, lottery.Pin{StudentID: pin.StudentID, PositionID: pin.PositionID})
	}

	for _, q := range rows.Quotas {
		snap.Quotas = append(snap.Quotas, lottery.Quota{PositionID: q.PositionID, Percentage: q.Percentage})
	}

	return snap
}

func (r *CatalogRepository) companyDaoToDomain(c dao.Company) domain.Company {
	return domain.Company{
		ID:           c.ID,
		EventID:      c.EventID,
		Name:         c.Name,
		ContactName:  c.ContactName,
		ContactEmail: c.ContactEmail,
		ContactPhone: c.ContactPhone,
	}
}

func (r *CatalogRepository) positionDaoToDomain(p dao.Position) domain.Position {
	return domain.Position{
		ID:           p.ID,
		EventID:      p.EventID,
		CompanyID:    p.CompanyID,
		Company:      r.companyDaoToDomain(p.Company),
		Title:        p.Title,
		Description:  p.Description,
		Location:     p.Location,
		Schedule:     p.Schedule,
		ContactName:  p.ContactName,
		ContactEmail: p.ContactEmail,
		ContactPhone: p.ContactPhone,
		Slots:        p.Slots,
		Published:    p.Published,
	}
}

func (r *CatalogRepository) studentDaoToDomain(s dao.Student) domain.Student {
	return domain.Student{
		ID:        s.ID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Grade:     s.Grade,
		Active:    s.Active,
		Graduated: s.Graduated,
	}
}
