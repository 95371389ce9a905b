package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/lottery"
	"github.com/vietanh2810/jobshadow-api/internal/repository"
)

type fakeLotteryRepo struct {
	mu           sync.Mutex
	nextJobID    uint
	nextResultID uint
	jobs         map[uint]domain.LotteryJob
	results      map[uint]domain.LotteryResult
	snapshots    map[uint]lottery.Snapshot

	commitErrs []error
	commits    int

	markFailedErrs  []error
	markFailedCalls int
}

func newFakeLotteryRepo() *fakeLotteryRepo {
	return &fakeLotteryRepo{
		jobs:      map[uint]domain.LotteryJob{},
		results:   map[uint]domain.LotteryResult{},
		snapshots: map[uint]lottery.Snapshot{},
	}
}

func (f *fakeLotteryRepo) CreateJob(_ context.Context, job domain.LotteryJob) (domain.LotteryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, j := range f.jobs {
		if j.EventID == job.EventID && j.Status == domain.JobRunning {
			return domain.LotteryJob{}, repository.ErrLotteryAlreadyRunning
		}
	}

	f.nextJobID++
	job.ID = f.nextJobID
	job.Status = domain.JobRunning
	f.jobs[job.ID] = job

	return job, nil
}

func (f *fakeLotteryRepo) FindJobByID(_ context.Context, id uint) (domain.LotteryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[id]
	if !ok {
		return domain.LotteryJob{}, repository.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeLotteryRepo) FindJobsByEvent(_ context.Context, eventID uint) ([]domain.LotteryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.LotteryJob
	for _, j := range f.jobs {
		if j.EventID == eventID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	return out, nil
}

func (f *fakeLotteryRepo) FindLatestCompletedJob(_ context.Context, eventID uint) (domain.LotteryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var latest domain.LotteryJob
	for _, j := range f.jobs {
		if j.EventID == eventID && j.Status == domain.JobCompleted && j.ID > latest.ID {
			latest = j
		}
	}
	if latest.ID == 0 {
		return domain.LotteryJob{}, repository.ErrJobNotFound
	}
	return latest, nil
}

func (f *fakeLotteryRepo) FindRunningJobs(_ context.Context) ([]domain.LotteryJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.LotteryJob
	for _, j := range f.jobs {
		if j.Status == domain.JobRunning {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeLotteryRepo) UpdateProgress(_ context.Context, id uint, progress int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	job := f.jobs[id]
	if job.Status == domain.JobRunning && progress > job.Progress {
		job.Progress = progress
		f.jobs[id] = job
	}
	return nil
}

func (f *fakeLotteryRepo) MarkFailed(_ context.Context, id uint, message string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.markFailedCalls++
	if len(f.markFailedErrs) > 0 {
		err := f.markFailedErrs[0]
		f.markFailedErrs = f.markFailedErrs[1:]
		return err
	}

	job, ok := f.jobs[id]
	if !ok || job.Status != domain.JobRunning {
		return repository.ErrJobNotRunning
	}
	job.Status = domain.JobFailed
	job.Message = message
	job.CompletedAt = &at
	f.jobs[id] = job
	return nil
}

func (f *fakeLotteryRepo) CommitResults(_ context.Context, done domain.LotteryJob, results []domain.LotteryResult, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commits++
	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		return err
	}

	job, ok := f.jobs[done.ID]
	if !ok || job.Status != domain.JobRunning {
		return repository.ErrJobNotRunning
	}
	job.Status = domain.JobCompleted
	job.Progress = 100
	job.Counts = done.Counts
	job.SkippedPins = done.SkippedPins
	job.ResultHash = done.ResultHash
	job.CompletedAt = done.CompletedAt
	f.jobs[job.ID] = job

	for _, r := range results {
		f.nextResultID++
		r.ID = f.nextResultID
		f.results[r.ID] = r
	}
	return nil
}

func (f *fakeLotteryRepo) SaveSnapshot(_ context.Context, jobID uint, snap lottery.Snapshot) (string, error) {
	hash, err := snap.Fingerprint()
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.snapshots[jobID] = snap
	job := f.jobs[jobID]
	job.SnapshotHash = hash
	f.jobs[jobID] = job
	return hash, nil
}

func (f *fakeLotteryRepo) FindSnapshot(_ context.Context, jobID uint) (lottery.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap, ok := f.snapshots[jobID]
	if !ok {
		return lottery.Snapshot{}, repository.ErrSnapshotNotFound
	}
	return snap, nil
}

func (f *fakeLotteryRepo) FindResultsByJob(_ context.Context, jobID uint) ([]domain.LotteryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []domain.LotteryResult{}
	for _, r := range f.results {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeLotteryRepo) DeleteResult(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.results[id]; !ok {
		return repository.ErrResultNotFound
	}
	delete(f.results, id)
	return nil
}

func (f *fakeLotteryRepo) CreateClaim(_ context.Context, claim domain.LotteryResult, capacity int) (domain.LotteryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	job, ok := f.jobs[claim.JobID]
	if !ok {
		return domain.LotteryResult{}, repository.ErrJobNotFound
	}
	if job.Status != domain.JobCompleted {
		return domain.LotteryResult{}, repository.ErrJobNotCompleted
	}

	used := 0
	for _, r := range f.results {
		if r.JobID != claim.JobID {
			continue
		}
		if r.StudentID == claim.StudentID {
			return domain.LotteryResult{}, repository.ErrStudentAlreadyAssigned
		}
		if r.PositionID == claim.PositionID {
			used++
		}
	}
	if used >= capacity {
		return domain.LotteryResult{}, repository.ErrPositionFull
	}

	f.nextResultID++
	claim.ID = f.nextResultID
	f.results[claim.ID] = claim
	return claim, nil
}

func (f *fakeLotteryRepo) job(id uint) domain.LotteryJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id]
}

type fakeCatalog struct {
	events    map[uint]domain.Event
	companies map[uint]domain.Company
	positions map[uint]domain.Position
	students  map[uint]domain.Student
	snapshot  lottery.Snapshot
	loadErr   error
}

func (f *fakeCatalog) FindEventByID(_ context.Context, id uint) (domain.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return domain.Event{}, repository.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeCatalog) FindCompanyByID(_ context.Context, id uint) (domain.Company, error) {
	c, ok := f.companies[id]
	if !ok {
		return domain.Company{}, repository.ErrCompanyNotFound
	}
	return c, nil
}

func (f *fakeCatalog) FindCompaniesByEvent(_ context.Context, eventID uint) ([]domain.Company, error) {
	var out []domain.Company
	for _, c := range f.companies {
		if c.EventID == eventID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeCatalog) FindPositionByID(_ context.Context, id uint) (domain.Position, error) {
	p, ok := f.positions[id]
	if !ok {
		return domain.Position{}, repository.ErrPositionNotFound
	}
	return p, nil
}

func (f *fakeCatalog) FindPositionsByEvent(_ context.Context, eventID uint) ([]domain.Position, error) {
	var out []domain.Position
	for _, p := range f.positions {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (f *fakeCatalog) FindStudentByID(_ context.Context, id uint) (domain.Student, error) {
	s, ok := f.students[id]
	if !ok {
		return domain.Student{}, repository.ErrStudentNotFound
	}
	return s, nil
}

func (f *fakeCatalog) FindStudentsByIDs(_ context.Context, ids []uint) ([]domain.Student, error) {
	var out []domain.Student
	for _, id := range ids {
		if s, ok := f.students[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeCatalog) LoadSnapshot(_ context.Context, eventID uint, order domain.GradeOrder) (lottery.Snapshot, map[uint]domain.PositionSnapshot, error) {
	if f.loadErr != nil {
		return lottery.Snapshot{}, nil, f.loadErr
	}
	snap := f.snapshot
	snap.EventID = eventID
	snap.GradeOrder = order

	details := map[uint]domain.PositionSnapshot{}
	for _, p := range snap.Positions {
		details[p.ID] = domain.SnapshotOf(f.positions[p.ID])
	}
	return snap, details, nil
}

// scenarioCatalog: P1(2) P2(1) P3(2); A=[P1,P2] B=[P1] C=[P2,P1] D=[P3].
func scenarioCatalog() *fakeCatalog {
	company := domain.Company{ID: 100, EventID: 1, Name: "Acme"}
	positions := map[uint]domain.Position{
		1: {ID: 1, EventID: 1, CompanyID: 100, Company: company, Title: "P1", Slots: 2, Published: true},
		2: {ID: 2, EventID: 1, CompanyID: 100, Company: company, Title: "P2", Slots: 1, Published: true},
		3: {ID: 3, EventID: 1, CompanyID: 100, Company: company, Title: "P3", Slots: 2, Published: true},
		9: {ID: 9, EventID: 2, CompanyID: 200, Title: "Other event", Slots: 5, Published: true},
	}
	students := map[uint]domain.Student{
		10: {ID: 10, FirstName: "A", Grade: 9, Active: true},
		11: {ID: 11, FirstName: "B", Grade: 10, Active: true},
		12: {ID: 12, FirstName: "C", Grade: 11, Active: true},
		13: {ID: 13, FirstName: "D", Grade: 12, Active: true},
		14: {ID: 14, FirstName: "E", Grade: 12, Active: true},
		15: {ID: 15, FirstName: "Gone", Grade: 12, Active: true, Graduated: true},
	}

	return &fakeCatalog{
		events:    map[uint]domain.Event{1: {ID: 1, Name: "Shadow Day"}, 2: {ID: 2, Name: "Other"}},
		companies: map[uint]domain.Company{100: company, 200: {ID: 200, EventID: 2, Name: "Elsewhere"}},
		positions: positions,
		students:  students,
		snapshot: lottery.Snapshot{
			Positions: []lottery.Position{{ID: 1, Slots: 2}, {ID: 2, Slots: 1}, {ID: 3, Slots: 2}},
			Students: []lottery.Student{
				{ID: 10, Grade: 9, Preferences: []lottery.Preference{{PositionID: 1, Rank: 1}, {PositionID: 2, Rank: 2}}},
				{ID: 11, Grade: 10, Preferences: []lottery.Preference{{PositionID: 1, Rank: 1}}},
				{ID: 12, Grade: 11, Preferences: []lottery.Preference{{PositionID: 2, Rank: 1}, {PositionID: 1, Rank: 2}}},
				{ID: 13, Grade: 12, Preferences: []lottery.Preference{{PositionID: 3, Rank: 1}}},
				{ID: 14, Grade: 12, Preferences: []lottery.Preference{}},
			},
			Pins:   []lottery.Pin{},
			Quotas: []lottery.Quota{},
		},
	}
}
