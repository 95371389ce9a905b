package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/lottery"
	"github.com/vietanh2810/jobshadow-api/internal/repository/dao"
)

var (
	ErrLotteryAlreadyRunning  = dao.ErrLotteryAlreadyRunning
	ErrJobNotFound            = dao.ErrJobNotFound
	ErrJobNotRunning          = dao.ErrJobNotRunning
	ErrJobNotCompleted        = dao.ErrJobNotCompleted
	ErrSnapshotNotFound       = dao.ErrSnapshotNotFound
	ErrResultNotFound         = dao.ErrResultNotFound
	ErrStudentAlreadyAssigned = dao.ErrStudentAlreadyAssigned
	ErrPositionFull           = dao.ErrPositionFull

	IsTransient = dao.IsTransient
)

type LotteryDAO interface {
	InsertJob(ctx context.Context, job dao.LotteryJob) (dao.LotteryJob, error)
	FindJobByID(ctx context.Context, id uint) (dao.LotteryJob, error)
	FindJobsByEvent(ctx context.Context, eventID uint) ([]dao.LotteryJob, error)
	FindLatestCompletedJob(ctx context.Context, eventID uint) (dao.LotteryJob, error)
	FindRunningJobs(ctx context.Context) ([]dao.LotteryJob, error)
	UpdateProgress(ctx context.Context, id uint, progress int) error
	MarkFailed(ctx context.Context, id uint, message string, at time.Time) error
	CommitResults(ctx context.Context, id uint, results []dao.LotteryResult, done dao.JobCompletion) error
	InsertSnapshot(ctx context.Context, snap dao.LotteryJobSnapshot) error
	FindSnapshot(ctx context.Context, jobID uint) (dao.LotteryJobSnapshot, error)
	FindResultsByJob(ctx context.Context, jobID uint) ([]dao.LotteryResult, error)
	DeleteResult(ctx context.Context, id uint) error
	InsertClaim(ctx context.Context, claim dao.LotteryResult, capacity int) (dao.LotteryResult, error)
}

type LotteryRepository struct {
	dao LotteryDAO
}

func NewLotteryRepository(dao LotteryDAO) *LotteryRepository {
	return &LotteryRepository{
		dao: dao,
	}
}

func (r *LotteryRepository) CreateJob(ctx context.Context, job domain.LotteryJob) (domain.LotteryJob, error) {
	created, err := r.dao.InsertJob(ctx, dao.LotteryJob{
		RunID:      job.RunID,
		EventID:    job.EventID,
		AdminID:    job.AdminID,
		Seed:       job.Seed,
		GradeOrder: string(job.GradeOrder),
		StartedAt:  job.StartedAt,
	})
	if err != nil {
		return domain.LotteryJob{}, fmt.Errorf("r.dao.InsertJob -> %w", err)
	}

	return r.jobDaoToDomain(created), nil
}

func (r *LotteryRepository) FindJobByID(ctx context.Context, id uint) (domain.LotteryJob, error) {
	found, err := r.dao.FindJobByID(ctx, id)
	if err != nil {
		return domain.LotteryJob{}, fmt.Errorf("r.dao.FindJobByID -> %w", err)
	}

	return r.jobDaoToDomain(found), nil
}

func (r *LotteryRepository) FindJobsByEvent(ctx context.Context, eventID uint) ([]domain.LotteryJob, error) {
	found, err := r.dao.FindJobsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindJobsByEvent -> %w", err)
	}

	return r.jobsDaoToDomain(found), nil
}

func (r *LotteryRepository) FindLatestCompletedJob(ctx context.Context, eventID uint) (domain.LotteryJob, error) {
	found, err := r.dao.FindLatestCompletedJob(ctx, eventID)
	if err != nil {
		return domain.LotteryJob{}, fmt.Errorf("r.dao.FindLatestCompletedJob -> %w", err)
	}

	return r.jobDaoToDomain(found), nil
}

func (r *LotteryRepository) FindRunningJobs(ctx context.Context) ([]domain.LotteryJob, error) {
	found, err := r.dao.FindRunningJobs(ctx)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindRunningJobs -> %w", err)
	}

	return r.jobsDaoToDomain(found), nil
}

func (r *LotteryRepository) UpdateProgress(ctx context.Context, id uint, progress int) error {
	if err := r.dao.UpdateProgress(ctx, id, progress); err != nil {
		return fmt.Errorf("r.dao.UpdateProgress -> %w", err)
	}

	return nil
}

func (r *LotteryRepository) MarkFailed(ctx context.Context, id uint, message string, at time.Time) error {
	if err := r.dao.MarkFailed(ctx, id, message, at); err != nil {
		return fmt.Errorf("r.dao.MarkFailed -> %w", err)
	}

	return nil
}

// CommitResults stores the results of a finished run together with the
// counters carried by job. CompletedAt must be set.
func (r *LotteryRepository) CommitResults(ctx context.Context, job domain.LotteryJob, results []domain.LotteryResult, batchSize int) error {
	rows := make([]dao.LotteryResult, len(results))
	for i, res := range results {
		rows[i] = r.resultDomainToDao(res)
	}

	skipped := make([]dao.SkippedPin, len(job.SkippedPins))
	for i, s := range job.SkippedPins {
		skipped[i] = dao.SkippedPin{StudentID: s.StudentID, PositionID: s.PositionID, Reason: string(s.Reason)}
	}

	var completedAt time.Time
	if job.CompletedAt != nil {
		completedAt = *job.CompletedAt
	}

	err := r.dao.CommitResults(ctx, job.ID, rows, dao.JobCompletion{
		Eligible:      job.Counts.Eligible,
		Placed:        job.Counts.Placed,
		NotPlaced:     job.Counts.NotPlaced,
		NoChoices:     job.Counts.NoChoices,
		SkippedPins:   skipped,
		ResultHash:    job.ResultHash,
		CompletedAt:   completedAt,
		CommitBatches: batchSize,
	})
	if err != nil {
		return fmt.Errorf("r.dao.CommitResults -> %w", err)
	}

	return nil
}

// SaveSnapshot stores the draw input of a job and returns its fingerprint.
func (r *LotteryRepository) SaveSnapshot(ctx context.Context, jobID uint, snap lottery.Snapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("json.Marshal -> %w", err)
	}

	hash, err := snap.Fingerprint()
	if err != nil {
		return "", fmt.Errorf("snap.Fingerprint -> %w", err)
	}

	err = r.dao.InsertSnapshot(ctx, dao.LotteryJobSnapshot{
		JobID:   jobID,
		Payload: datatypes.JSON(payload),
		Hash:    hash,
	})
	if err != nil {
		return "", fmt.Errorf("r.dao.InsertSnapshot -> %w", err)
	}

	return hash, nil
}

func (r *LotteryRepository) FindSnapshot(ctx context.Context, jobID uint) (lottery.Snapshot, error) {
	found, err := r.dao.FindSnapshot(ctx, jobID)
	if err != nil {
		return lottery.Snapshot{}, fmt.Errorf("r.dao.FindSnapshot -> %w", err)
	}

	var snap lottery.Snapshot
	if err = json.Unmarshal(found.Payload, &snap); err != nil {
		return lottery.Snapshot{}, fmt.Errorf("json.Unmarshal -> %w", err)
	}

	return snap, nil
}

func (r *LotteryRepository) FindResultsByJob(ctx context.Context, jobID uint) ([]domain.LotteryResult, error) {
	found, err := r.dao.FindResultsByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("r.dao.FindResultsByJob -> %w", err)
	}

	results := make([]domain.LotteryResult, len(found))
	for i, res := range found {
		results[i] = r.resultDaoToDomain(res)
	}

	return results, nil
}

func (r *LotteryRepository) DeleteResult(ctx context.Context, id uint) error {
	if err := r.dao.DeleteResult(ctx, id); err != nil {
		return fmt.Errorf("r.dao.DeleteResult -> %w", err)
	}

	return nil
}

func (r *LotteryRepository) CreateClaim(ctx context.Context, claim domain.LotteryResult, capacity int) (domain.LotteryResult, error) {
	created, err := r.dao.InsertClaim(ctx, r.resultDomainToDao(claim), capacity)
	if err != nil {
		return domain.LotteryResult{}, fmt.Errorf("r.dao.InsertClaim -> %w", err)
	}

	return r.resultDaoToDomain(created), nil
}

func (r *LotteryRepository) jobsDaoToDomain(jobs []dao.LotteryJob) []domain.LotteryJob {
	out := make([]domain.LotteryJob, len(jobs))
	for i, j := range jobs {
		out[i] = r.jobDaoToDomain(j)
	}
	return out
}

func (r *LotteryRepository) jobDaoToDomain(j dao.LotteryJob) domain.LotteryJob {
	var skipped []domain.SkippedPin
	for _, s := range j.SkippedDetail.Data() {
		skipped = append(skipped, domain.SkippedPin{
			StudentID:  s.StudentID,
			PositionID: s.PositionID,
			Reason:     domain.SkipReason(s.Reason),
		})
	}

	return domain.LotteryJob{
		ID:         j.ID,
		RunID:      j.RunID,
		EventID:    j.EventID,
		AdminID:    j.AdminID,
		Status:     domain.JobStatus(j.Status),
		Progress:   j.Progress,
		Seed:       j.Seed,
		GradeOrder: domain.GradeOrder(j.GradeOrder),
		Message:    j.Message,
		Counts: domain.JobCounts{
			Eligible:    j.Eligible,
			Placed:      j.Placed,
			NotPlaced:   j.NotPlaced,
			NoChoices:   j.NoChoices,
			SkippedPins: j.SkippedPins,
		},
		SkippedPins:  skipped,
		SnapshotHash: j.SnapshotHash,
		ResultHash:   j.ResultHash,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

func (r *LotteryRepository) resultDomainToDao(res domain.LotteryResult) dao.LotteryResult {
	return dao.LotteryResult{
		ID:         res.ID,
		JobID:      res.JobID,
		EventID:    res.EventID,
		StudentID:  res.StudentID,
		PositionID: res.PositionID,
		Origin:     string(res.Origin),
		Rank:       res.Rank,
		Position:   datatypes.NewJSONType(dao.PositionSnapshot(res.Position)),
		CreatedAt:  res.CreatedAt,
	}
}

func (r *LotteryRepository) resultDaoToDomain(res dao.LotteryResult) domain.LotteryResult {
	return domain.LotteryResult{
		ID:         res.ID,
		JobID:      res.JobID,
		EventID:    res.EventID,
		StudentID:  res.StudentID,
		PositionID: res.PositionID,
		Origin:     domain.ResultOrigin(res.Origin),
		Rank:       res.Rank,
		Position:   domain.PositionSnapshot(res.Position.Data()),
		CreatedAt:  res.CreatedAt,
	}
}
