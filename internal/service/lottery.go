package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/jobrunner"
	"github.com/vietanh2810/jobshadow-api/internal/lottery"
	"github.com/vietanh2810/jobshadow-api/internal/metrics"
	"github.com/vietanh2810/jobshadow-api/internal/repository"
)

var (
	ErrLotteryAlreadyRunning  = repository.ErrLotteryAlreadyRunning
	ErrJobNotFound            = repository.ErrJobNotFound
	ErrJobNotCompleted        = repository.ErrJobNotCompleted
	ErrSnapshotNotFound       = repository.ErrSnapshotNotFound
	ErrResultNotFound         = repository.ErrResultNotFound
	ErrStudentAlreadyAssigned = repository.ErrStudentAlreadyAssigned
	ErrPositionFull           = repository.ErrPositionFull
	ErrEventNotFound          = repository.ErrEventNotFound
	ErrPositionNotFound       = repository.ErrPositionNotFound
	ErrStudentNotFound        = repository.ErrStudentNotFound

	ErrInvalidGradeOrder  = errors.New("invalid grade order")
	ErrInvalidSeed        = errors.New("seed must be between 0 and 2^53-1")
	ErrPositionNotInEvent = errors.New("position does not belong to this event")
	ErrStudentIneligible  = errors.New("student is inactive or graduated")
	ErrPositionNotOffered = errors.New("position is not published")
	ErrQueueUnavailable   = errors.New("lottery queue unavailable")
)

const (
	// FailedMessage is all callers learn about a failed run. The stored
	// diagnostic stays server side.
	FailedMessage      = "lottery failed"
	interruptedMessage = "interrupted: the process running this job stopped"

	// The draw phase maps onto 0..drawProgressCeiling; the commit owns
	// the rest.
	drawProgressCeiling = 95

	commitBackoff = 250 * time.Millisecond
)

type LotteryRepository interface {
	CreateJob(ctx context.Context, job domain.LotteryJob) (domain.LotteryJob, error)
	FindJobByID(ctx context.Context, id uint) (domain.LotteryJob, error)
	FindJobsByEvent(ctx context.Context, eventID uint) ([]domain.LotteryJob, error)
	FindLatestCompletedJob(ctx context.Context, eventID uint) (domain.LotteryJob, error)
	FindRunningJobs(ctx context.Context) ([]domain.LotteryJob, error)
	UpdateProgress(ctx context.Context, id uint, progress int) error
	MarkFailed(ctx context.Context, id uint, message string, at time.Time) error
	CommitResults(ctx context.Context, job domain.LotteryJob, results []domain.LotteryResult, batchSize int) error
	SaveSnapshot(ctx context.Context, jobID uint, snap lottery.Snapshot) (string, error)
	FindSnapshot(ctx context.Context, jobID uint) (lottery.Snapshot, error)
	FindResultsByJob(ctx context.Context, jobID uint) ([]domain.LotteryResult, error)
	DeleteResult(ctx context.Context, id uint) error
	CreateClaim(ctx context.Context, claim domain.LotteryResult, capacity int) (domain.LotteryResult, error)
}

type LotteryCatalogRepository interface {
	FindEventByID(ctx context.Context, id uint) (domain.Event, error)
	FindPositionByID(ctx context.Context, id uint) (domain.Position, error)
	FindStudentByID(ctx context.Context, id uint) (domain.Student, error)
	LoadSnapshot(ctx context.Context, eventID uint, order domain.GradeOrder) (lottery.Snapshot, map[uint]domain.PositionSnapshot, error)
}

type JobQueue interface {
	Submit(t jobrunner.Task) error
}

type LotteryMetrics interface {
	RecordJobStarted()
	RecordJobFinished(status domain.JobStatus, d time.Duration)
	RecordDraw(counts domain.JobCounts, skipped []domain.SkippedPin)
	RecordCommit(result string, d time.Duration)
}

// Notifier is told once a job's results are durably committed.
type Notifier interface {
	ResultsPublished(ctx context.Context, job domain.LotteryJob) error
}

type LogNotifier struct{}

func (LogNotifier) ResultsPublished(_ context.Context, job domain.LotteryJob) error {
	zap.L().Info("lottery results published",
		zap.Uint("job_id", job.ID),
		zap.Uint("event_id", job.EventID),
		zap.Int("placed", job.Counts.Placed),
	)
	return nil
}

type LotteryConfig struct {
	ProgressBatch   int
	CommitTimeout   time.Duration
	CommitRetries   int
	CommitBatchSize int
}

type StartOptions struct {
	GradeOrder domain.GradeOrder
	// Seed replays a previous draw. A fresh seed is drawn when nil.
	Seed *int64
}

type JobStatusView struct {
	JobID       uint                `json:"job_id"`
	RunID       uuid.UUID           `json:"run_id"`
	EventID     uint                `json:"event_id"`
	Status      domain.JobStatus    `json:"status"`
	IsRunning   bool                `json:"is_running"`
	Progress    int                 `json:"progress"`
	Seed        int64               `json:"seed"`
	GradeOrder  domain.GradeOrder   `json:"grade_order"`
	Counts      domain.JobCounts    `json:"counts"`
	SkippedPins []domain.SkippedPin `json:"skipped_pins"`
	Message     string              `json:"message,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

type LotteryService struct {
	repo     LotteryRepository
	catalog  LotteryCatalogRepository
	queue    JobQueue
	notifier Notifier
	metrics  LotteryMetrics
	conf     LotteryConfig
	events   *jobEvents
	// parked holds failed jobs whose FAILED status could not be stored.
	parked *xsync.Map[uint, parkedFailure]

	now  func() time.Time
	seed func() int64
}

func NewLotteryService(repo LotteryRepository, catalog LotteryCatalogRepository, conf LotteryConfig) *LotteryService {
	return &LotteryService{
		repo:     repo,
		catalog:  catalog,
		notifier: LogNotifier{},
		metrics:  metrics.NewNop(),
		conf:     conf,
		events:   newJobEvents(),
		parked:   xsync.NewMap[uint, parkedFailure](),
		now:      func() time.Time { return time.Now().UTC() },
		seed:     func() int64 { return rand.Int64N(domain.MaxSeed) },
	}
}

// UseQueue wires the runner that executes draws. The runner in turn
// reports back through Handle.
func (s *LotteryService) UseQueue(q JobQueue) {
	s.queue = q
}

func (s *LotteryService) UseNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

func (s *LotteryService) UseMetrics(m LotteryMetrics) {
	if m != nil {
		s.metrics = m
	}
}

// Start creates a RUNNING job, freezes its input and queues the draw. It
// returns as soon as the job is queued.
func (s *LotteryService) Start(ctx context.Context, adminID, eventID uint, opts StartOptions) (domain.LotteryJob, error) {
	if !opts.GradeOrder.Valid() {
		return domain.LotteryJob{}, ErrInvalidGradeOrder
	}
	if s.queue == nil {
		return domain.LotteryJob{}, ErrQueueUnavailable
	}

	if _, err := s.catalog.FindEventByID(ctx, eventID); err != nil {
		return domain.LotteryJob{}, fmt.Errorf("s.catalog.FindEventByID -> %w", err)
	}

	seed := s.seed()
	if opts.Seed != nil {
		if *opts.Seed < 0 || *opts.Seed >= domain.MaxSeed {
			return domain.LotteryJob{}, ErrInvalidSeed
		}
		seed = *opts.Seed
	}

	job, err := s.repo.CreateJob(ctx, domain.LotteryJob{
		RunID:      uuid.New(),
		EventID:    eventID,
		AdminID:    adminID,
		Seed:       seed,
		GradeOrder: opts.GradeOrder,
		StartedAt:  s.now(),
	})
	if err != nil {
		return domain.LotteryJob{}, fmt.Errorf("s.repo.CreateJob -> %w", err)
	}

	log := zap.L().With(
		zap.Uint("job_id", job.ID),
		zap.Uint("event_id", eventID),
		zap.String("run_id", job.RunID.String()),
		zap.Int64("seed", seed),
	)
	log.Info("lottery job created", zap.Uint("admin_id", adminID), zap.String("grade_order", string(opts.GradeOrder)))

	// Failures below still own a RUNNING row that must be released even
	// if the caller went away.
	bg := context.WithoutCancel(ctx)

	snap, details, err := s.catalog.LoadSnapshot(ctx, eventID, opts.GradeOrder)
	if err != nil {
		s.fail(bg, job, err)
		return domain.LotteryJob{}, fmt.Errorf("s.catalog.LoadSnapshot -> %w", err)
	}

	hash, err := s.repo.SaveSnapshot(ctx, job.ID, snap)
	if err != nil {
		s.fail(bg, job, err)
		return domain.LotteryJob{}, fmt.Errorf("s.repo.SaveSnapshot -> %w", err)
	}
	job.SnapshotHash = hash

	if err = s.queue.Submit(jobrunner.Task{JobID: job.ID, Run: s.draw(job, snap, details)}); err != nil {
		s.fail(bg, job, err)
		return domain.LotteryJob{}, fmt.Errorf("s.queue.Submit -> %w", err)
	}

	s.metrics.RecordJobStarted()
	log.Info("lottery job queued",
		zap.String("snapshot_hash", hash),
		zap.Int("students", len(snap.Students)),
		zap.Int("positions", len(snap.Positions)),
	)

	return job, nil
}

// draw is the runner task of one job: the engine, then the commit.
func (s *LotteryService) draw(job domain.LotteryJob, snap lottery.Snapshot, details map[uint]domain.PositionSnapshot) func(context.Context, jobrunner.ReportFunc) error {
	return func(ctx context.Context, report jobrunner.ReportFunc) error {
		outcome, err := lottery.Run(snap, job.Seed, lottery.WithProgress(s.conf.ProgressBatch, lottery.ProgressFunc(report)))
		if err != nil {
			return fmt.Errorf("lottery.Run -> %w", err)
		}

		hash, err := outcome.Fingerprint()
		if err != nil {
			return fmt.Errorf("outcome.Fingerprint -> %w", err)
		}

		completedAt := s.now()
		job.Status = domain.JobCompleted
		job.Progress = 100
		job.Counts = outcome.Counts()
		job.SkippedPins = outcome.SkippedPins
		job.ResultHash = hash
		job.CompletedAt = &completedAt

		results := make([]domain.LotteryResult, len(outcome.Assignments))
		for i, a := range outcome.Assignments {
			results[i] = domain.LotteryResult{
				JobID:      job.ID,
				EventID:    job.EventID,
				StudentID:  a.StudentID,
				PositionID: a.PositionID,
				Origin:     a.Origin,
				Rank:       rankPtr(a.Rank),
				Position:   details[a.PositionID],
				CreatedAt:  completedAt,
			}
		}

		if err = s.commit(ctx, job, results); err != nil {
			return err
		}

		s.metrics.RecordDraw(job.Counts, job.SkippedPins)
		zap.L().Info("lottery results committed",
			zap.Uint("job_id", job.ID),
			zap.Int("eligible", job.Counts.Eligible),
			zap.Int("placed", job.Counts.Placed),
			zap.Int("not_placed", job.Counts.NotPlaced),
			zap.Int("no_choices", job.Counts.NoChoices),
			zap.Int("skipped_pins", job.Counts.SkippedPins),
			zap.String("result_hash", hash),
		)

		return nil
	}
}

func rankPtr(rank int) *int {
	if rank <= 0 {
		return nil
	}
	return &rank
}

// commit writes all results in one transaction, retrying transient
// database failures up to CommitRetries times.
func (s *LotteryService) commit(ctx context.Context, job domain.LotteryJob, results []domain.LotteryResult) error {
	var err error

	for attempt := 0; attempt <= s.conf.CommitRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(attempt) * commitBackoff):
			case <-ctx.Done():
				return fmt.Errorf("commit aborted: %w", ctx.Err())
			}
		}

		started := time.Now()
		cctx, cancel := context.WithTimeout(ctx, s.conf.CommitTimeout)
		err = s.repo.CommitResults(cctx, job, results, s.conf.CommitBatchSize)
		cancel()

		if err == nil {
			s.metrics.RecordCommit(metrics.CommitSuccess, time.Since(started))
			return nil
		}

		if !s.retryable(ctx, err) {
			s.metrics.RecordCommit(metrics.CommitFailure, time.Since(started))
			return fmt.Errorf("s.repo.CommitResults -> %w", err)
		}

		s.metrics.RecordCommit(metrics.CommitRetry, time.Since(started))
		zap.L().Warn("lottery commit failed, retrying",
			zap.Uint("job_id", job.ID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return fmt.Errorf("s.repo.CommitResults after %d attempts -> %w", s.conf.CommitRetries+1, err)
}

func (s *LotteryService) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	return repository.IsTransient(err) || errors.Is(err, context.DeadlineExceeded)
}

// Handle receives runner updates, one at a time.
func (s *LotteryService) Handle(u jobrunner.Update) {
	ctx, cancel := context.WithTimeout(context.Background(), s.conf.CommitTimeout)
	defer cancel()

	switch u.Kind {
	case jobrunner.KindProgress:
		progress := drawProgress(u.Processed, u.Total)
		if err := s.repo.UpdateProgress(ctx, u.JobID, progress); err != nil {
			zap.L().Warn("failed to store lottery progress", zap.Uint("job_id", u.JobID), zap.Error(err))
		}
		s.events.publish(JobEvent{JobID: u.JobID, Status: domain.JobRunning, Progress: progress})

	case jobrunner.KindCompleted:
		job, err := s.repo.FindJobByID(ctx, u.JobID)
		if err != nil {
			zap.L().Error("completed lottery job not found", zap.Uint("job_id", u.JobID), zap.Error(err))
			return
		}
		s.finish(job)
		if err = s.notifier.ResultsPublished(ctx, job); err != nil {
			zap.L().Error("lottery notifier failed", zap.Uint("job_id", job.ID), zap.Error(err))
		}

	case jobrunner.KindFailed:
		job, err := s.repo.FindJobByID(ctx, u.JobID)
		if err != nil {
			zap.L().Error("failed to load failed lottery job", zap.Uint("job_id", u.JobID), zap.Error(err))
			job = domain.LotteryJob{ID: u.JobID, Status: domain.JobRunning}
		}
		s.fail(ctx, job, u.Err)
	}
}

func drawProgress(processed, total int) int {
	if total <= 0 {
		return drawProgressCeiling
	}
	return min(processed, total) * drawProgressCeiling / total
}

func (s *LotteryService) finish(job domain.LotteryJob) {
	if !job.StartedAt.IsZero() {
		s.metrics.RecordJobFinished(job.Status, s.now().Sub(job.StartedAt))
	}
	counts := job.Counts
	s.events.publish(eventOf(job, &counts))
}

func eventOf(job domain.LotteryJob, counts *domain.JobCounts) JobEvent {
	ev := JobEvent{JobID: job.ID, Status: job.Status, Progress: job.Progress, Counts: counts}
	if job.Status == domain.JobFailed {
		ev.Message = FailedMessage
	}
	return ev
}

type parkedFailure struct {
	job     domain.LotteryJob
	message string
	at      time.Time
}

// fail stores cause as the job's diagnostic and flips it to FAILED. A job
// that still cannot be flipped after the retry budget is parked for
// ReapFailed.
func (s *LotteryService) fail(ctx context.Context, job domain.LotteryJob, cause error) {
	message := "unknown error"
	if cause != nil {
		message = cause.Error()
	}

	zap.L().Error("lottery job failed",
		zap.Uint("job_id", job.ID),
		zap.Uint("event_id", job.EventID),
		zap.Int64("seed", job.Seed),
		zap.Error(cause),
	)

	at := s.now()
	if err := s.markFailed(ctx, job.ID, message, at); err != nil {
		zap.L().Error("failed to mark lottery job as failed, parked for retry", zap.Uint("job_id", job.ID), zap.Error(err))
		s.parked.Store(job.ID, parkedFailure{job: job, message: message, at: at})
		return
	}

	s.settle(ctx, job, at)
}

// markFailed retries MarkFailed with the commit backoff and budget. Each
// attempt gets its own timeout, detached from ctx's deadline.
func (s *LotteryService) markFailed(ctx context.Context, jobID uint, message string, at time.Time) error {
	base := context.WithoutCancel(ctx)
	var err error

	for attempt := 0; attempt <= s.conf.CommitRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * commitBackoff)
		}

		actx, cancel := context.WithTimeout(base, s.conf.CommitTimeout)
		err = s.repo.MarkFailed(actx, jobID, message, at)
		cancel()

		if err == nil || errors.Is(err, repository.ErrJobNotRunning) || errors.Is(err, repository.ErrJobNotFound) {
			return nil
		}

		zap.L().Warn("failed to mark lottery job as failed, retrying",
			zap.Uint("job_id", jobID),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return fmt.Errorf("s.repo.MarkFailed after %d attempts -> %w", s.conf.CommitRetries+1, err)
}

// settle publishes the terminal event of a job that markFailed is done
// with. ErrJobNotRunning means the job already reached a terminal state,
// so the stored job is published as is.
func (s *LotteryService) settle(ctx context.Context, job domain.LotteryJob, at time.Time) {
	job.Status = domain.JobFailed
	job.CompletedAt = &at

	stored, err := s.repo.FindJobByID(context.WithoutCancel(ctx), job.ID)
	if err == nil && stored.Status != domain.JobRunning {
		job = stored
	}
	s.finish(job)
}

// ReapFailed retries parked failures once each and returns how many were
// settled.
func (s *LotteryService) ReapFailed(ctx context.Context) int {
	settled := 0
	s.parked.Range(func(id uint, p parkedFailure) bool {
		cctx, cancel := context.WithTimeout(ctx, s.conf.CommitTimeout)
		err := s.repo.MarkFailed(cctx, id, p.message, p.at)
		cancel()

		switch {
		case err == nil, errors.Is(err, repository.ErrJobNotRunning), errors.Is(err, repository.ErrJobNotFound):
			s.parked.Delete(id)
			s.settle(ctx, p.job, p.at)
			settled++
			zap.L().Info("parked lottery job settled", zap.Uint("job_id", id))
		default:
			zap.L().Warn("parked lottery job still cannot be marked as failed", zap.Uint("job_id", id), zap.Error(err))
		}
		return ctx.Err() == nil
	})

	return settled
}

// RunReaper calls ReapFailed every interval until ctx is done.
func (s *LotteryService) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapFailed(ctx)
		}
	}
}

func (s *LotteryService) Status(ctx context.Context, jobID uint) (JobStatusView, error) {
	job, err := s.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return JobStatusView{}, fmt.Errorf("s.repo.FindJobByID -> %w", err)
	}

	return statusView(job), nil
}

func statusView(job domain.LotteryJob) JobStatusView {
	v := JobStatusView{
		JobID:       job.ID,
		RunID:       job.RunID,
		EventID:     job.EventID,
		Status:      job.Status,
		IsRunning:   job.IsRunning(),
		Progress:    job.Progress,
		Seed:        job.Seed,
		GradeOrder:  job.GradeOrder,
		Counts:      job.Counts,
		SkippedPins: job.SkippedPins,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if v.SkippedPins == nil {
		v.SkippedPins = []domain.SkippedPin{}
	}
	if job.Status == domain.JobFailed {
		v.Message = FailedMessage
	}

	return v
}

func (s *LotteryService) ListJobs(ctx context.Context, eventID uint) ([]JobStatusView, error) {
	if _, err := s.catalog.FindEventByID(ctx, eventID); err != nil {
		return nil, fmt.Errorf("s.catalog.FindEventByID -> %w", err)
	}

	jobs, err := s.repo.FindJobsByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("s.repo.FindJobsByEvent -> %w", err)
	}

	views := make([]JobStatusView, len(jobs))
	for i, j := range jobs {
		views[i] = statusView(j)
	}

	return views, nil
}

// Subscribe streams the job's events, starting with its current state.
// The channel is closed after the terminal event or when cancel is called.
func (s *LotteryService) Subscribe(ctx context.Context, jobID uint) (<-chan JobEvent, func(), error) {
	id, sub := s.events.add(jobID)
	cancel := func() { s.events.remove(id) }

	job, err := s.repo.FindJobByID(ctx, jobID)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("s.repo.FindJobByID -> %w", err)
	}

	current := eventOf(job, nil)
	if job.Status.Terminal() {
		counts := job.Counts
		current.Counts = &counts
	}
	sub.trySend(current)
	if current.Terminal() {
		cancel()
	}

	return sub.ch, cancel, nil
}

// Release deletes a single result. The freed slot is not re-allocated
// and the job is not touched.
func (s *LotteryService) Release(ctx context.Context, resultID uint) error {
	if err := s.repo.DeleteResult(ctx, resultID); err != nil {
		return fmt.Errorf("s.repo.DeleteResult -> %w", err)
	}

	zap.L().Info("lottery result released", zap.Uint("result_id", resultID))

	return nil
}

// Claim adds a post-hoc manual result to a completed job.
func (s *LotteryService) Claim(ctx context.Context, jobID, studentID, positionID uint) (domain.LotteryResult, error) {
	job, err := s.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return domain.LotteryResult{}, fmt.Errorf("s.repo.FindJobByID -> %w", err)
	}
	if job.Status != domain.JobCompleted {
		return domain.LotteryResult{}, ErrJobNotCompleted
	}

	position, err := s.catalog.FindPositionByID(ctx, positionID)
	if err != nil {
		return domain.LotteryResult{}, fmt.Errorf("s.catalog.FindPositionByID -> %w", err)
	}
	if position.EventID != job.EventID {
		return domain.LotteryResult{}, ErrPositionNotInEvent
	}
	if !position.Published {
		return domain.LotteryResult{}, ErrPositionNotOffered
	}

	student, err := s.catalog.FindStudentByID(ctx, studentID)
	if err != nil {
		return domain.LotteryResult{}, fmt.Errorf("s.catalog.FindStudentByID -> %w", err)
	}
	if !student.Eligible() {
		return domain.LotteryResult{}, ErrStudentIneligible
	}

	claim, err := s.repo.CreateClaim(ctx, domain.LotteryResult{
		JobID:      job.ID,
		EventID:    job.EventID,
		StudentID:  student.ID,
		PositionID: position.ID,
		Origin:     domain.OriginManualPostHoc,
		Position:   domain.SnapshotOf(position),
		CreatedAt:  s.now(),
	}, position.Slots)
	if err != nil {
		return domain.LotteryResult{}, fmt.Errorf("s.repo.CreateClaim -> %w", err)
	}

	zap.L().Info("lottery result claimed",
		zap.Uint("job_id", job.ID),
		zap.Uint("student_id", student.ID),
		zap.Uint("position_id", position.ID),
	)

	return claim, nil
}

// RecoverInterrupted fails jobs left RUNNING by a previous process so the
// event can be drawn again. It assumes this process is the only one
// serving the database: jobs of another live instance would be failed too.
func (s *LotteryService) RecoverInterrupted(ctx context.Context) (int, error) {
	jobs, err := s.repo.FindRunningJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("s.repo.FindRunningJobs -> %w", err)
	}

	recovered := 0
	for _, job := range jobs {
		err = s.repo.MarkFailed(ctx, job.ID, interruptedMessage, s.now())
		if err != nil {
			if errors.Is(err, repository.ErrJobNotRunning) {
				continue
			}
			return recovered, fmt.Errorf("s.repo.MarkFailed -> %w", err)
		}
		recovered++
		zap.L().Warn("interrupted lottery job marked as failed", zap.Uint("job_id", job.ID), zap.Uint("event_id", job.EventID))
	}

	return recovered, nil
}

// ReplayReport compares a fresh run of a stored snapshot with what the job
// committed.
type ReplayReport struct {
	JobID          uint             `json:"job_id"`
	Seed           int64            `json:"seed"`
	SnapshotHash   string           `json:"snapshot_hash"`
	SnapshotIntact bool             `json:"snapshot_intact"`
	StoredHash     string           `json:"stored_hash"`
	ReplayHash     string           `json:"replay_hash"`
	Match          bool             `json:"match"`
	Counts         domain.JobCounts `json:"counts"`
}

func (s *LotteryService) Replay(ctx context.Context, jobID uint) (ReplayReport, error) {
	job, err := s.repo.FindJobByID(ctx, jobID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("s.repo.FindJobByID -> %w", err)
	}

	snap, err := s.repo.FindSnapshot(ctx, jobID)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("s.repo.FindSnapshot -> %w", err)
	}

	snapHash, err := snap.Fingerprint()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("snap.Fingerprint -> %w", err)
	}

	outcome, err := lottery.Run(snap, job.Seed)
	if err != nil {
		return ReplayReport{}, fmt.Errorf("lottery.Run -> %w", err)
	}

	hash, err := outcome.Fingerprint()
	if err != nil {
		return ReplayReport{}, fmt.Errorf("outcome.Fingerprint -> %w", err)
	}

	return ReplayReport{
		JobID:          job.ID,
		Seed:           job.Seed,
		SnapshotHash:   snapHash,
		SnapshotIntact: snapHash == job.SnapshotHash,
		StoredHash:     job.ResultHash,
		ReplayHash:     hash,
		Match:          job.ResultHash != "" && hash == job.ResultHash,
		Counts:         outcome.Counts(),
	}, nil
}
