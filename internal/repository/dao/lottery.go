package dao

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrLotteryAlreadyRunning  = errors.New("a lottery is already running for this event")
	ErrJobNotFound            = errors.New("lottery job not found")
	ErrJobNotRunning          = errors.New("lottery job is not running")
	ErrJobNotCompleted        = errors.New("lottery job is not completed")
	ErrSnapshotNotFound       = errors.New("lottery snapshot not found")
	ErrResultNotFound         = errors.New("lottery result not found")
	ErrStudentAlreadyAssigned = errors.New("student already has a result in this job")
	ErrPositionFull           = errors.New("position has no remaining capacity")
)

const (
	JobStatusRunning   = "RUNNING"
	JobStatusCompleted = "COMPLETED"
	JobStatusFailed    = "FAILED"

	// runningJobIndex allows one RUNNING job per event.
	runningJobIndex = "idx_lottery_jobs_one_running"
	resultIndex     = "idx_lottery_results_job_student"
)

type SkippedPin struct {
	StudentID  uint   `json:"student_id"`
	PositionID uint   `json:"position_id"`
	Reason     string `json:"reason"`
}

type LotteryJob struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	EventID    uint      `gorm:"not null;index"`
	AdminID    uint      `gorm:"not null"`
	Status     string    `gorm:"not null;index"`
	Progress   int       `gorm:"not null;default:0"`
	Seed       int64     `gorm:"not null"`
	GradeOrder string    `gorm:"not null"`
	Message    string

	Eligible      int `gorm:"not null;default:0"`
	Placed        int `gorm:"not null;default:0"`
	NotPlaced     int `gorm:"not null;default:0"`
	NoChoices     int `gorm:"not null;default:0"`
	SkippedPins   int `gorm:"not null;default:0"`
	SkippedDetail datatypes.JSONType[[]SkippedPin]

	SnapshotHash string
	ResultHash   string

	StartedAt   time.Time `gorm:"not null"`
	CompletedAt *time.Time
}

// LotteryJobSnapshot keeps the exact draw input of a job for audits.
type LotteryJobSnapshot struct {
	JobID   uint           `gorm:"primaryKey;autoIncrement:false"`
	Payload datatypes.JSON `gorm:"not null"`
	Hash    string         `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
}

type PositionSnapshot struct {
	Title        string `json:"title"`
	CompanyID    uint   `json:"company_id"`
	CompanyName  string `json:"company_name"`
	Location     string `json:"location"`
	Schedule     string `json:"schedule"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone"`
}

type LotteryResult struct {
	ID         uint   `gorm:"primaryKey"`
	JobID      uint   `gorm:"not null;uniqueIndex:idx_lottery_results_job_student"`
	StudentID  uint   `gorm:"not null;uniqueIndex:idx_lottery_results_job_student"`
	EventID    uint   `gorm:"not null;index"`
	PositionID uint   `gorm:"not null;index"`
	Origin     string `gorm:"not null"`
	Rank       *int
	Position   datatypes.JSONType[PositionSnapshot] `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
}

// JobCompletion carries what a successful run writes onto its job.
type JobCompletion struct {
	Eligible      int
	Placed        int
	NotPlaced     int
	NoChoices     int
	SkippedPins   []SkippedPin
	ResultHash    string
	CompletedAt   time.Time
	CommitBatches int
}

type LotteryDAO struct {
	db *gorm.DB
}

func NewLotteryDAO(db *gorm.DB) *LotteryDAO {
	return &LotteryDAO{
		db: db,
	}
}

// InsertJob creates a RUNNING job. The partial unique index turns a second
// concurrent start for the same event into ErrLotteryAlreadyRunning.
func (d *LotteryDAO) InsertJob(ctx context.Context, job LotteryJob) (LotteryJob, error) {
	job.Status = JobStatusRunning

	result := d.db.WithContext(ctx).Create(&job)
	if result.Error != nil {
		if isUniqueViolation(result.Error, runningJobIndex) {
			return LotteryJob{}, ErrLotteryAlreadyRunning
		}

		return LotteryJob{}, result.Error
	}

	return job, nil
}

func (d *LotteryDAO) FindJobByID(ctx context.Context, id uint) (LotteryJob, error) {
	var job LotteryJob

	result := d.db.WithContext(ctx).First(&job, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return LotteryJob{}, ErrJobNotFound
		}

		return LotteryJob{}, result.Error
	}

	return job, nil
}

func (d *LotteryDAO) FindJobsByEvent(ctx context.Context, eventID uint) ([]LotteryJob, error) {
	var jobs []LotteryJob

	result := d.db.WithContext(ctx).Where("event_id = ?", eventID).Order("id DESC").Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}

	return jobs, nil
}

func (d *LotteryDAO) FindLatestCompletedJob(ctx context.Context, eventID uint) (LotteryJob, error) {
	var job LotteryJob

	result := d.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, JobStatusCompleted).
		Order("completed_at DESC, id DESC").
		First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return LotteryJob{}, ErrJobNotFound
		}

		return LotteryJob{}, result.Error
	}

	return job, nil
}

func (d *LotteryDAO) FindRunningJobs(ctx context.Context) ([]LotteryJob, error) {
	var jobs []LotteryJob

	result := d.db.WithContext(ctx).Where("status = ?", JobStatusRunning).Order("id").Find(&jobs)
	if result.Error != nil {
		return nil, result.Error
	}

	return jobs, nil
}

// UpdateProgress only moves progress forward and only while the job runs.
func (d *LotteryDAO) UpdateProgress(ctx context.Context, id uint, progress int) error {
	return d.db.WithContext(ctx).
		Model(&LotteryJob{}).
		Where("id = ? AND status = ? AND progress < ?", id, JobStatusRunning, progress).
		Update("progress", progress).Error
}

func (d *LotteryDAO) MarkFailed(ctx context.Context, id uint, message string, at time.Time) error {
	result := d.db.WithContext(ctx).
		Model(&LotteryJob{}).
		Where("id = ? AND status = ?", id, JobStatusRunning).
		Updates(map[string]any{
			"status":       JobStatusFailed,
			"message":      message,
			"completed_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotRunning
	}

	return nil
}

// CommitResults writes every result row and completes the job in a single
// transaction. Nothing is written unless the job is still RUNNING.
func (d *LotteryDAO) CommitResults(ctx context.Context, id uint, results []LotteryResult, done JobCompletion) error {
	batch := done.CommitBatches
	if batch <= 0 {
		batch = 500
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&LotteryJob{}).
			Where("id = ? AND status = ?", id, JobStatusRunning).
			Updates(map[string]any{
				"status":         JobStatusCompleted,
				"progress":       100,
				"eligible":       done.Eligible,
				"placed":         done.Placed,
				"not_placed":     done.NotPlaced,
				"no_choices":     done.NoChoices,
				"skipped_pins":   len(done.SkippedPins),
				"skipped_detail": datatypes.NewJSONType(done.SkippedPins),
				"result_hash":    done.ResultHash,
				"completed_at":   done.CompletedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrJobNotRunning
		}

		if len(results) == 0 {
			return nil
		}

		return tx.CreateInBatches(&results, batch).Error
	})
}

// InsertSnapshot stores the draw input and stamps its hash on the job.
func (d *LotteryDAO) InsertSnapshot(ctx context.Context, snap LotteryJobSnapshot) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&snap).Error; err != nil {
			return err
		}

		return tx.Model(&LotteryJob{}).
			Where("id = ?", snap.JobID).
			Update("snapshot_hash", snap.Hash).Error
	})
}

func (d *LotteryDAO) FindSnapshot(ctx context.Context, jobID uint) (LotteryJobSnapshot, error) {
	var snap LotteryJobSnapshot

	result := d.db.WithContext(ctx).First(&snap, "job_id = ?", jobID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return LotteryJobSnapshot{}, ErrSnapshotNotFound
		}

		return LotteryJobSnapshot{}, result.Error
	}

	return snap, nil
}

func (d *LotteryDAO) FindResultsByJob(ctx context.Context, jobID uint) ([]LotteryResult, error) {
	var results []LotteryResult

	result := d.db.WithContext(ctx).Where("job_id = ?", jobID).Order("id").Find(&results)
	if result.Error != nil {
		return nil, result.Error
	}

	return results, nil
}

// DeleteResult removes exactly one row. The job is left untouched.
func (d *LotteryDAO) DeleteResult(ctx context.Context, id uint) error {
	result := d.db.WithContext(ctx).Delete(&LotteryResult{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResultNotFound
	}

	return nil
}

// InsertClaim adds a post-hoc result to a completed job. The job row is
// locked so concurrent claims on the same job see each other's counts.
func (d *LotteryDAO) InsertClaim(ctx context.Context, claim LotteryResult, capacity int) (LotteryResult, error) {
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job LotteryJob
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&job, claim.JobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrJobNotFound
			}
			return err
		}
		if job.Status != JobStatusCompleted {
			return ErrJobNotCompleted
		}

		var taken int64
		if err := tx.Model(&LotteryResult{}).
			Where("job_id = ? AND student_id = ?", claim.JobID, claim.StudentID).
			Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrStudentAlreadyAssigned
		}

		var used int64
		if err := tx.Model(&LotteryResult{}).
			Where("job_id = ? AND position_id = ?", claim.JobID, claim.PositionID).
			Count(&used).Error; err != nil {
			return err
		}
		if int(used) >= capacity {
			return ErrPositionFull
		}

		claim.EventID = job.EventID
		if err := tx.Create(&claim).Error; err != nil {
			if isUniqueViolation(err, resultIndex) {
				return ErrStudentAlreadyAssigned
			}
			return err
		}

		return nil
	})
	if err != nil {
		return LotteryResult{}, err
	}

	return claim, nil
}
