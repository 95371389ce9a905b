package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
	"github.com/vietanh2810/jobshadow-api/internal/jobrunner"
	"github.com/vietanh2810/jobshadow-api/internal/lottery"
)

// captureQueue holds submitted tasks so a test can run them by hand.
type captureQueue struct {
	tasks []jobrunner.Task
	err   error
}

func (q *captureQueue) Submit(t jobrunner.Task) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, t)
	return nil
}

type recordingNotifier struct {
	published chan domain.LotteryJob
}

func (n *recordingNotifier) ResultsPublished(_ context.Context, job domain.LotteryJob) error {
	n.published <- job
	return nil
}

func newTestLotteryService(catalog *fakeCatalog, repo *fakeLotteryRepo) *LotteryService {
	return NewLotteryService(repo, catalog, LotteryConfig{
		ProgressBatch:   1,
		CommitTimeout:   time.Second,
		CommitRetries:   2,
		CommitBatchSize: 100,
	})
}

func startRunner(t *testing.T, svc *LotteryService) {
	t.Helper()

	r := jobrunner.New(1, 4, svc)
	svc.UseQueue(r)
	r.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.Stop(ctx)
	})
}

func waitTerminal(t *testing.T, svc *LotteryService, jobID uint) JobEvent {
	t.Helper()

	ch, cancel, err := svc.Subscribe(context.Background(), jobID)
	require.NoError(t, err)
	defer cancel()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event stream closed before a terminal event")
			if ev.Terminal() {
				return ev
			}
		case <-timeout:
			t.Fatalf("job %d did not finish", jobID)
		}
	}
}

func byStudent(results []domain.LotteryResult) map[uint]domain.LotteryResult {
	out := make(map[uint]domain.LotteryResult, len(results))
	for _, r := range results {
		out[r.StudentID] = r
	}
	return out
}

func TestLotteryService_StartRunsDrawToCompletion(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	notifier := &recordingNotifier{published: make(chan domain.LotteryJob, 1)}
	svc.UseNotifier(notifier)
	startRunner(t, svc)

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderAscending})
	require.NoError(t, err)
	assert.Equal(t, domain.JobRunning, job.Status)
	assert.NotEmpty(t, job.SnapshotHash)

	ev := waitTerminal(t, svc, job.ID)
	assert.Equal(t, domain.JobCompleted, ev.Status)
	assert.Equal(t, 100, ev.Progress)
	require.NotNil(t, ev.Counts)
	assert.Equal(t, domain.JobCounts{Eligible: 5, Placed: 4, NotPlaced: 0, NoChoices: 1}, *ev.Counts)

	stored := repo.job(job.ID)
	assert.Equal(t, domain.JobCompleted, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	assert.NotEmpty(t, stored.ResultHash)
	assert.NotNil(t, stored.CompletedAt)

	results, err := repo.FindResultsByJob(context.Background(), job.ID)
	require.NoError(t, err)
	got := byStudent(results)
	require.Len(t, got, 4)

	// One student per grade: the ascending order fixes the outcome.
	assert.Equal(t, uint(1), got[10].PositionID)
	assert.Equal(t, uint(1), got[11].PositionID)
	assert.Equal(t, uint(2), got[12].PositionID)
	assert.Equal(t, uint(3), got[13].PositionID)
	for _, r := range results {
		assert.Equal(t, domain.OriginLotteryRank, r.Origin)
		require.NotNil(t, r.Rank)
		assert.Equal(t, 1, *r.Rank)
		assert.Equal(t, uint(1), r.EventID)
	}
	assert.Equal(t, "P1", got[10].Position.Title)
	assert.Equal(t, "Acme", got[10].Position.CompanyName)

	select {
	case published := <-notifier.published:
		assert.Equal(t, job.ID, published.ID)
	case <-time.After(5 * time.Second):
		t.Fatal("notifier was not called")
	}
}

func TestLotteryService_SameSeedSameResults(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	startRunner(t, svc)

	seed := int64(20240611)
	run := func() (domain.LotteryJob, map[uint]domain.LotteryResult) {
		job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone, Seed: &seed})
		require.NoError(t, err)
		require.Equal(t, domain.JobCompleted, waitTerminal(t, svc, job.ID).Status)

		results, err := repo.FindResultsByJob(context.Background(), job.ID)
		require.NoError(t, err)
		return repo.job(job.ID), byStudent(results)
	}

	first, firstResults := run()
	second, secondResults := run()

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.SnapshotHash, second.SnapshotHash)
	assert.Equal(t, first.ResultHash, second.ResultHash)
	require.Len(t, secondResults, len(firstResults))
	for studentID, r := range firstResults {
		assert.Equal(t, r.PositionID, secondResults[studentID].PositionID, "student %d", studentID)
	}
}

func TestLotteryService_StartValidation(t *testing.T) {
	tests := []struct {
		name    string
		eventID uint
		order   domain.GradeOrder
		wantErr error
	}{
		{name: "unknown grade order", eventID: 1, order: "SIDEWAYS", wantErr: ErrInvalidGradeOrder},
		{name: "empty grade order", eventID: 1, order: "", wantErr: ErrInvalidGradeOrder},
		{name: "unknown event", eventID: 42, order: domain.GradeOrderNone, wantErr: ErrEventNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeLotteryRepo()
			svc := newTestLotteryService(scenarioCatalog(), repo)
			svc.UseQueue(&captureQueue{})

			_, err := svc.Start(context.Background(), 7, tt.eventID, StartOptions{GradeOrder: tt.order})
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, repo.jobs)
		})
	}
}

func TestLotteryService_StartWithoutQueue(t *testing.T) {
	svc := newTestLotteryService(scenarioCatalog(), newFakeLotteryRepo())

	_, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestLotteryService_SingleFlightPerEvent(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	svc.UseQueue(&captureQueue{})

	first, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.ErrorIs(t, err, ErrLotteryAlreadyRunning)
	assert.Equal(t, domain.JobRunning, repo.job(first.ID).Status)

	// Another event is not blocked.
	other, err := svc.Start(context.Background(), 7, 2, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestLotteryService_QueueFullFailsJob(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	svc.UseQueue(&captureQueue{err: jobrunner.ErrQueueFull})

	_, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.ErrorIs(t, err, jobrunner.ErrQueueFull)

	require.Len(t, repo.jobs, 1)
	job := repo.job(1)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.Message, "queue is full")

	view, err := svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, FailedMessage, view.Message)
	assert.False(t, view.IsRunning)

	// The failed job no longer blocks the event.
	svc.UseQueue(&captureQueue{})
	_, err = svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)
}

func TestLotteryService_SnapshotLoadFailureFailsJob(t *testing.T) {
	repo := newFakeLotteryRepo()
	catalog := scenarioCatalog()
	catalog.loadErr = errors.New("connection reset")
	svc := newTestLotteryService(catalog, repo)
	svc.UseQueue(&captureQueue{})

	_, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.Error(t, err)
	assert.Equal(t, domain.JobFailed, repo.job(1).Status)
}

func TestLotteryService_MalformedSnapshotFailsWithoutResults(t *testing.T) {
	repo := newFakeLotteryRepo()
	catalog := scenarioCatalog()
	catalog.snapshot.Positions[1].Slots = -1
	svc := newTestLotteryService(catalog, repo)
	q := &captureQueue{}
	svc.UseQueue(q)

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)
	require.Len(t, q.tasks, 1)

	runErr := q.tasks[0].Run(context.Background(), func(int, int) {})
	require.ErrorIs(t, runErr, lottery.ErrMalformedSnapshot)
	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindFailed, Err: runErr})

	stored := repo.job(job.ID)
	assert.Equal(t, domain.JobFailed, stored.Status)
	assert.Contains(t, stored.Message, "negative capacity")
	assert.Zero(t, repo.commits)

	results, err := repo.FindResultsByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, results)

	view, err := svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, FailedMessage, view.Message)
	assert.NotContains(t, view.Message, "negative")
}

func TestLotteryService_CommitRetriesTransientErrors(t *testing.T) {
	repo := newFakeLotteryRepo()
	repo.commitErrs = []error{&pgconn.PgError{Code: pgerrcode.SerializationFailure}}
	svc := newTestLotteryService(scenarioCatalog(), repo)
	q := &captureQueue{}
	svc.UseQueue(q)

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderAscending})
	require.NoError(t, err)

	require.NoError(t, q.tasks[0].Run(context.Background(), func(int, int) {}))
	assert.Equal(t, 2, repo.commits)
	assert.Equal(t, domain.JobCompleted, repo.job(job.ID).Status)
}

func TestLotteryService_CommitStopsOnPermanentError(t *testing.T) {
	repo := newFakeLotteryRepo()
	repo.commitErrs = []error{errors.New("relation does not exist")}
	svc := newTestLotteryService(scenarioCatalog(), repo)
	q := &captureQueue{}
	svc.UseQueue(q)

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderAscending})
	require.NoError(t, err)

	runErr := q.tasks[0].Run(context.Background(), func(int, int) {})
	require.Error(t, runErr)
	assert.Equal(t, 1, repo.commits)

	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindFailed, Err: runErr})
	assert.Equal(t, domain.JobFailed, repo.job(job.ID).Status)
	results, err := repo.FindResultsByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// failedDraw starts a job on event 1 whose commit fails permanently and
// returns the runner error.
func failedDraw(t *testing.T, svc *LotteryService, repo *fakeLotteryRepo) (domain.LotteryJob, error) {
	t.Helper()

	repo.commitErrs = []error{errors.New("relation does not exist")}
	q := &captureQueue{}
	svc.UseQueue(q)

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderAscending})
	require.NoError(t, err)

	runErr := q.tasks[0].Run(context.Background(), func(int, int) {})
	require.Error(t, runErr)
	return job, runErr
}

func TestLotteryService_FailRetriesMarkFailed(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	job, runErr := failedDraw(t, svc, repo)
	repo.markFailedErrs = []error{errors.New("connection reset by peer")}

	ch, cancel, err := svc.Subscribe(context.Background(), job.ID)
	require.NoError(t, err)
	defer cancel()

	go svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindFailed, Err: runErr})

	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event stream closed before a terminal event")
			if ev.Terminal() {
				assert.Equal(t, domain.JobFailed, ev.Status)
				assert.Equal(t, FailedMessage, ev.Message)
				done = true
			}
		case <-timeout:
			t.Fatal("no terminal event for the failed job")
		}
	}

	assert.Equal(t, 2, repo.markFailedCalls)
	view, err := svc.Status(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, view.Status)

	_, err = svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	assert.NoError(t, err)
}

func TestLotteryService_ReapFailedSettlesParkedJobs(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	job, runErr := failedDraw(t, svc, repo)

	down := errors.New("connection refused")
	repo.markFailedErrs = []error{down, down, down}

	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindFailed, Err: runErr})
	assert.Equal(t, 3, repo.markFailedCalls)
	assert.Equal(t, domain.JobRunning, repo.job(job.ID).Status)
	assert.Equal(t, 1, svc.parked.Size())

	_, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.ErrorIs(t, err, ErrLotteryAlreadyRunning)

	assert.Equal(t, 1, svc.ReapFailed(context.Background()))
	assert.Equal(t, domain.JobFailed, repo.job(job.ID).Status)
	assert.Zero(t, svc.parked.Size())
	assert.Zero(t, svc.ReapFailed(context.Background()))

	ev := waitTerminal(t, svc, job.ID)
	assert.Equal(t, domain.JobFailed, ev.Status)

	_, err = svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	assert.NoError(t, err)
}

func TestLotteryService_FailAfterLateCommitKeepsStoredStatus(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	svc.UseQueue(&captureQueue{})

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)
	require.NoError(t, repo.CommitResults(context.Background(), job, nil, 100))

	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindFailed, Err: context.DeadlineExceeded})
	assert.Equal(t, 1, repo.markFailedCalls)
	assert.Equal(t, domain.JobCompleted, repo.job(job.ID).Status)
	assert.Zero(t, svc.parked.Size())
}

func TestLotteryService_Seeds(t *testing.T) {
	svc := newTestLotteryService(scenarioCatalog(), newFakeLotteryRepo())
	for i := 0; i < 1000; i++ {
		seed := svc.seed()
		require.GreaterOrEqual(t, seed, int64(0))
		require.Less(t, seed, domain.MaxSeed)
	}

	svc.UseQueue(&captureQueue{})
	for _, bad := range []int64{-1, domain.MaxSeed} {
		_, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone, Seed: &bad})
		require.ErrorIs(t, err, ErrInvalidSeed)
	}

	largest := domain.MaxSeed - 1
	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone, Seed: &largest})
	require.NoError(t, err)
	assert.Equal(t, largest, job.Seed)
}

func TestLotteryService_CommitGivesUpWhenCancelled(t *testing.T) {
	repo := newFakeLotteryRepo()
	repo.commitErrs = []error{&pgconn.PgError{Code: pgerrcode.DeadlockDetected}}
	svc := newTestLotteryService(scenarioCatalog(), repo)
	q := &captureQueue{}
	svc.UseQueue(q)

	_, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderAscending})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, q.tasks[0].Run(ctx, func(int, int) {}))
	assert.Equal(t, 1, repo.commits)
}

func TestLotteryService_HandleProgress(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	svc.UseQueue(&captureQueue{})

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)

	ch, cancel, err := svc.Subscribe(context.Background(), job.ID)
	require.NoError(t, err)
	defer cancel()
	initial := <-ch
	assert.Equal(t, domain.JobRunning, initial.Status)
	assert.Zero(t, initial.Progress)

	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindProgress, Processed: 2, Total: 4})
	ev := <-ch
	assert.Equal(t, 47, ev.Progress)
	assert.Equal(t, 47, repo.job(job.ID).Progress)

	// Progress never moves backwards.
	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindProgress, Processed: 1, Total: 4})
	assert.Equal(t, 47, repo.job(job.ID).Progress)
}

func TestDrawProgress(t *testing.T) {
	tests := []struct {
		processed, total, want int
	}{
		{0, 10, 0},
		{5, 10, 47},
		{10, 10, 95},
		{12, 10, 95},
		{0, 0, 95},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, drawProgress(tt.processed, tt.total), "%d/%d", tt.processed, tt.total)
	}
}

func TestLotteryService_SubscribeToFinishedJob(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	startRunner(t, svc)

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderAscending})
	require.NoError(t, err)
	waitTerminal(t, svc, job.ID)

	ch, cancel, err := svc.Subscribe(context.Background(), job.ID)
	require.NoError(t, err)
	defer cancel()

	ev, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, domain.JobCompleted, ev.Status)
	require.NotNil(t, ev.Counts)

	_, ok = <-ch
	assert.False(t, ok)
	assert.Zero(t, svc.events.size())

	_, _, err = svc.Subscribe(context.Background(), 999)
	require.ErrorIs(t, err, ErrJobNotFound)
	assert.Zero(t, svc.events.size())
}

func completedJob(t *testing.T) (*LotteryService, *fakeLotteryRepo, domain.LotteryJob) {
	t.Helper()

	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	q := &captureQueue{}
	svc.UseQueue(q)

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderAscending})
	require.NoError(t, err)
	require.NoError(t, q.tasks[0].Run(context.Background(), func(int, int) {}))
	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindCompleted})

	return svc, repo, repo.job(job.ID)
}

func TestLotteryService_Release(t *testing.T) {
	svc, repo, job := completedJob(t)

	results, err := repo.FindResultsByJob(context.Background(), job.ID)
	require.NoError(t, err)
	target := byStudent(results)[12]

	require.NoError(t, svc.Release(context.Background(), target.ID))
	require.ErrorIs(t, svc.Release(context.Background(), target.ID), ErrResultNotFound)

	after, err := repo.FindResultsByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(results)-1)
	assert.NotContains(t, byStudent(after), uint(12))

	// The job itself is untouched.
	assert.Equal(t, job, repo.job(job.ID))
}

func TestLotteryService_Claim(t *testing.T) {
	ctx := context.Background()

	t.Run("job still running", func(t *testing.T) {
		repo := newFakeLotteryRepo()
		svc := newTestLotteryService(scenarioCatalog(), repo)
		svc.UseQueue(&captureQueue{})
		job, err := svc.Start(ctx, 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
		require.NoError(t, err)

		_, err = svc.Claim(ctx, job.ID, 14, 3)
		require.ErrorIs(t, err, ErrJobNotCompleted)
	})

	t.Run("free slot", func(t *testing.T) {
		svc, _, job := completedJob(t)

		claim, err := svc.Claim(ctx, job.ID, 14, 3)
		require.NoError(t, err)
		assert.Equal(t, domain.OriginManualPostHoc, claim.Origin)
		assert.Nil(t, claim.Rank)
		assert.Equal(t, "P3", claim.Position.Title)
		assert.Equal(t, uint(1), claim.EventID)
	})

	t.Run("position full", func(t *testing.T) {
		svc, _, job := completedJob(t)

		_, err := svc.Claim(ctx, job.ID, 14, 1)
		require.ErrorIs(t, err, ErrPositionFull)
	})

	t.Run("student already placed", func(t *testing.T) {
		svc, _, job := completedJob(t)

		_, err := svc.Claim(ctx, job.ID, 13, 3)
		require.ErrorIs(t, err, ErrStudentAlreadyAssigned)
	})

	t.Run("released slot can be claimed", func(t *testing.T) {
		svc, repo, job := completedJob(t)
		results, err := repo.FindResultsByJob(ctx, job.ID)
		require.NoError(t, err)
		require.NoError(t, svc.Release(ctx, byStudent(results)[12].ID))

		_, err = svc.Claim(ctx, job.ID, 14, 2)
		require.NoError(t, err)
	})

	t.Run("position of another event", func(t *testing.T) {
		svc, _, job := completedJob(t)

		_, err := svc.Claim(ctx, job.ID, 14, 9)
		require.ErrorIs(t, err, ErrPositionNotInEvent)
	})

	t.Run("unpublished position", func(t *testing.T) {
		svc, _, job := completedJob(t)
		svc.catalog.(*fakeCatalog).positions[4] = domain.Position{ID: 4, EventID: 1, CompanyID: 100, Title: "Draft", Slots: 3}

		_, err := svc.Claim(ctx, job.ID, 14, 4)
		require.ErrorIs(t, err, ErrPositionNotOffered)
	})

	t.Run("graduated student", func(t *testing.T) {
		svc, _, job := completedJob(t)

		_, err := svc.Claim(ctx, job.ID, 15, 3)
		require.ErrorIs(t, err, ErrStudentIneligible)
	})
}

func TestLotteryService_RecoverInterrupted(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	svc.UseQueue(&captureQueue{})

	stale1, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)
	stale2, err := svc.Start(context.Background(), 7, 2, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)

	n, err := svc.RecoverInterrupted(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, domain.JobFailed, repo.job(stale1.ID).Status)
	assert.Equal(t, domain.JobFailed, repo.job(stale2.ID).Status)

	n, err = svc.RecoverInterrupted(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLotteryService_Replay(t *testing.T) {
	svc, repo, job := completedJob(t)

	report, err := svc.Replay(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, report.SnapshotIntact)
	assert.True(t, report.Match)
	assert.Equal(t, job.ResultHash, report.ReplayHash)
	assert.Equal(t, job.Counts, report.Counts)

	tampered := repo.snapshots[job.ID]
	tampered.Positions = append([]lottery.Position{}, tampered.Positions...)
	tampered.Positions[0].Slots = 0
	repo.snapshots[job.ID] = tampered

	report, err = svc.Replay(context.Background(), job.ID)
	require.NoError(t, err)
	assert.False(t, report.SnapshotIntact)
	assert.False(t, report.Match)
}

func TestLotteryService_ListJobs(t *testing.T) {
	svc, _, job := completedJob(t)

	views, err := svc.ListJobs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, job.ID, views[0].JobID)
	assert.Equal(t, domain.JobCompleted, views[0].Status)
	assert.NotNil(t, views[0].SkippedPins)

	_, err = svc.ListJobs(context.Background(), 42)
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestLotteryService_FailedEventCarriesGenericMessage(t *testing.T) {
	repo := newFakeLotteryRepo()
	svc := newTestLotteryService(scenarioCatalog(), repo)
	svc.UseQueue(&captureQueue{})

	job, err := svc.Start(context.Background(), 7, 1, StartOptions{GradeOrder: domain.GradeOrderNone})
	require.NoError(t, err)

	ch, cancel, err := svc.Subscribe(context.Background(), job.ID)
	require.NoError(t, err)
	defer cancel()
	<-ch

	svc.Handle(jobrunner.Update{JobID: job.ID, Kind: jobrunner.KindFailed, Err: errors.New("pq: relation missing")})

	ev := <-ch
	assert.Equal(t, domain.JobFailed, ev.Status)
	assert.Equal(t, FailedMessage, ev.Message)
}
