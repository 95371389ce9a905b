package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/lottery"
)

type ReportLotteryRepository interface {
	FindJobByID(ctx context.Context, id uint) (domain.LotteryJob, error)
	FindLatestCompletedJob(ctx context.Context, eventID uint) (domain.LotteryJob, error)
	FindResultsByJob(ctx context.Context, jobID uint) ([]domain.LotteryResult, error)
	FindSnapshot(ctx context.Context, jobID uint) (lottery.Snapshot, error)
}

type ReportCatalogRepository interface {
	FindPositionsByEvent(ctx context.Context, eventID uint) ([]domain.Position, error)
	FindCompaniesByEvent(ctx context.Context, eventID uint) ([]domain.Company, error)
	FindStudentsByIDs(ctx context.Context, ids []uint) ([]domain.Student, error)
}

// ReportService answers read-only questions about committed results. The
// population of a report is the set of students frozen in the job's
// snapshot, so later roster edits do not change it.
type ReportService struct {
	lottery ReportLotteryRepository
	catalog ReportCatalogRepository
}

func NewReportService(lottery ReportLotteryRepository, catalog ReportCatalogRepository) *ReportService {
	return &ReportService{
		lottery: lottery,
		catalog: catalog,
	}
}

// reportData is everything one report needs about one job.
type reportData struct {
	job       domain.LotteryJob
	snap      lottery.Snapshot
	results   []domain.LotteryResult
	positions map[uint]domain.Position
	students  map[uint]domain.Student
	// ranks[student][position] from the snapshot preferences.
	ranks map[uint]map[uint]int
}

func (s *ReportService) load(ctx context.Context, jobID uint) (reportData, error) {
	job, err := s.lottery.FindJobByID(ctx, jobID)
	if err != nil {
		return reportData{}, fmt.Errorf("s.lottery.FindJobByID -> %w", err)
	}
	if job.Status != domain.JobCompleted {
		return reportData{}, ErrJobNotCompleted
	}

	snap, err := s.lottery.FindSnapshot(ctx, jobID)
	if err != nil {
		return reportData{}, fmt.Errorf("s.lottery.FindSnapshot -> %w", err)
	}

	results, err := s.lottery.FindResultsByJob(ctx, jobID)
	if err != nil {
		return reportData{}, fmt.Errorf("s.lottery.FindResultsByJob -> %w", err)
	}

	positions, err := s.catalog.FindPositionsByEvent(ctx, job.EventID)
	if err != nil {
		return reportData{}, fmt.Errorf("s.catalog.FindPositionsByEvent -> %w", err)
	}

	ids := make([]uint, 0, len(snap.Students)+len(results))
	seen := make(map[uint]bool, len(snap.Students))
	for _, st := range snap.Students {
		ids = append(ids, st.ID)
		seen[st.ID] = true
	}
	for _, r := range results {
		if !seen[r.StudentID] {
			ids = append(ids, r.StudentID)
			seen[r.StudentID] = true
		}
	}

	students, err := s.catalog.FindStudentsByIDs(ctx, ids)
	if err != nil {
		return reportData{}, fmt.Errorf("s.catalog.FindStudentsByIDs -> %w", err)
	}

	d := reportData{
		job:       job,
		snap:      snap,
		results:   results,
		positions: make(map[uint]domain.Position, len(positions)),
		students:  make(map[uint]domain.Student, len(students)),
		ranks:     make(map[uint]map[uint]int, len(snap.Students)),
	}
	for _, p := range positions {
		d.positions[p.ID] = p
	}
	for _, st := range students {
		d.students[st.ID] = st
	}
	for _, st := range snap.Students {
		m := make(map[uint]int, len(st.Preferences))
		for _, p := range st.Preferences {
			if _, ok := m[p.PositionID]; !ok {
				m[p.PositionID] = p.Rank
			}
		}
		d.ranks[st.ID] = m
	}

	return d, nil
}

func (d reportData) rankOf(r domain.LotteryResult) *int {
	if r.Rank != nil {
		return r.Rank
	}
	if rank, ok := d.ranks[r.StudentID][r.PositionID]; ok {
		return &rank
	}
	return nil
}

// placed returns the students holding a result.
func (d reportData) placed() map[uint]bool {
	out := make(map[uint]bool, len(d.results))
	for _, r := range d.results {
		out[r.StudentID] = true
	}
	return out
}

// LatestJob resolves the most recent completed job of an event.
func (s *ReportService) LatestJob(ctx context.Context, eventID uint) (domain.LotteryJob, error) {
	job, err := s.lottery.FindLatestCompletedJob(ctx, eventID)
	if err != nil {
		return domain.LotteryJob{}, fmt.Errorf("s.lottery.FindLatestCompletedJob -> %w", err)
	}

	return job, nil
}

// Assignments groups a job's results by position. Drawn positions without
// any result are listed too.
func (s *ReportService) Assignments(ctx context.Context, jobID uint) ([]domain.PositionAssignments, error) {
	d, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	groups := make(map[uint]*domain.PositionAssignments)
	group := func(positionID uint) *domain.PositionAssignments {
		if g, ok := groups[positionID]; ok {
			return g
		}
		g := &domain.PositionAssignments{PositionID: positionID, Students: []domain.AssignedStudent{}}
		if p, ok := d.positions[positionID]; ok {
			g.Slots = p.Slots
			g.Position = domain.SnapshotOf(p)
		}
		groups[positionID] = g
		return g
	}

	for _, p := range d.snap.Positions {
		group(p.ID).Slots = p.Slots
	}

	for _, r := range d.results {
		g := group(r.PositionID)
		// the frozen details win over the live position
		g.Position = r.Position

		st := d.students[r.StudentID]
		g.Students = append(g.Students, domain.AssignedStudent{
			ResultID:  r.ID,
			StudentID: r.StudentID,
			Name:      st.FullName(),
			Email:     st.Email,
			Grade:     st.Grade,
			Origin:    r.Origin,
			Rank:      d.rankOf(r),
		})
	}

	out := make([]domain.PositionAssignments, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PositionID < out[j].PositionID })

	return out, nil
}

// Unplaced lists the job's eligible students that hold no result, either
// because the draw left them out or because their result was released.
func (s *ReportService) Unplaced(ctx context.Context, jobID uint) ([]domain.UnplacedStudent, error) {
	d, err := s.load(ctx, jobID)
	if err != nil {
		return nil, err
	}

	placed := d.placed()
	out := []domain.UnplacedStudent{}
	for _, st := range d.snap.Students {
		if placed[st.ID] {
			continue
		}
		info := d.students[st.ID]
		out = append(out, domain.UnplacedStudent{
			StudentID:  st.ID,
			Name:       info.FullName(),
			Email:      info.Email,
			Grade:      st.Grade,
			HasChoices: len(st.Preferences) > 0,
		})
	}

	return out, nil
}

// Stats tallies results by the rank students gave their position. Manual
// results are counted apart. Per position and company, not placed counts
// unplaced students who had chosen it.
func (s *ReportService) Stats(ctx context.Context, jobID uint) (domain.LotteryStats, error) {
	d, err := s.load(ctx, jobID)
	if err != nil {
		return domain.LotteryStats{}, err
	}

	companies, err := s.catalog.FindCompaniesByEvent(ctx, d.job.EventID)
	if err != nil {
		return domain.LotteryStats{}, fmt.Errorf("s.catalog.FindCompaniesByEvent -> %w", err)
	}
	companyNames := make(map[uint]string, len(companies))
	for _, c := range companies {
		companyNames[c.ID] = c.Name
	}

	stats := domain.LotteryStats{
		JobID:     d.job.ID,
		EventID:   d.job.EventID,
		Overall:   domain.NewRankTally(),
		Positions: []domain.PositionTally{},
		Companies: []domain.CompanyTally{},
	}

	byPosition := make(map[uint]*domain.PositionTally)
	positionTally := func(positionID uint, fallback domain.PositionSnapshot) *domain.PositionTally {
		if t, ok := byPosition[positionID]; ok {
			return t
		}
		t := &domain.PositionTally{PositionID: positionID, Title: fallback.Title, CompanyID: fallback.CompanyID, Tally: domain.NewRankTally()}
		if p, ok := d.positions[positionID]; ok {
			t.Title = p.Title
			t.CompanyID = p.CompanyID
		}
		byPosition[positionID] = t
		return t
	}
	byCompany := make(map[uint]*domain.CompanyTally)
	companyTally := func(companyID uint) *domain.CompanyTally {
		if t, ok := byCompany[companyID]; ok {
			return t
		}
		t := &domain.CompanyTally{CompanyID: companyID, Name: companyNames[companyID], Tally: domain.NewRankTally()}
		byCompany[companyID] = t
		return t
	}

	for _, p := range d.snap.Positions {
		companyTally(positionTally(p.ID, domain.PositionSnapshot{}).CompanyID)
	}

	count := func(t *domain.RankTally, r domain.LotteryResult) {
		rank := d.rankOf(r)
		if r.Origin.Manual() || rank == nil {
			t.Manual++
			return
		}
		t.ByRank[*rank]++
	}

	for _, r := range d.results {
		pt := positionTally(r.PositionID, r.Position)
		count(&stats.Overall, r)
		count(&pt.Tally, r)
		count(&companyTally(pt.CompanyID).Tally, r)
	}

	placed := d.placed()
	for _, st := range d.snap.Students {
		if placed[st.ID] {
			continue
		}
		if len(st.Preferences) == 0 {
			stats.Overall.NoChoices++
			continue
		}
		stats.Overall.NotPlaced++

		counted := make(map[uint]bool)
		for _, pref := range st.Preferences {
			pt := positionTally(pref.PositionID, domain.PositionSnapshot{})
			pt.Tally.NotPlaced++
			if !counted[pt.CompanyID] {
				counted[pt.CompanyID] = true
				companyTally(pt.CompanyID).Tally.NotPlaced++
			}
		}
	}

	for _, t := range byPosition {
		stats.Positions = append(stats.Positions, *t)
	}
	sort.Slice(stats.Positions, func(i, j int) bool { return stats.Positions[i].PositionID < stats.Positions[j].PositionID })

	for _, t := range byCompany {
		stats.Companies = append(stats.Companies, *t)
	}
	sort.Slice(stats.Companies, func(i, j int) bool { return stats.Companies[i].CompanyID < stats.Companies[j].CompanyID })

	return stats, nil
}
