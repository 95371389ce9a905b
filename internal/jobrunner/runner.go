// Package jobrunner executes lottery jobs on a fixed pool of workers.
//
// Workers never touch job state directly. Every change (progress,
// completion, failure) travels as an Update through one status loop,
// which hands it to a Sink in the order the updates were produced.
package jobrunner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("job runner is stopped")
)

type Kind string

const (
	KindProgress  Kind = "progress"
	KindCompleted Kind = "completed"
	KindFailed    Kind = "failed"
)

type Update struct {
	JobID     uint
	Kind      Kind
	Processed int
	Total     int
	Err       error
	At        time.Time
}

// Sink consumes updates. Handle is only ever called from the status loop.
type Sink interface {
	Handle(u Update)
}

// ReportFunc lets a task publish its progress.
type ReportFunc func(processed, total int)

type Task struct {
	JobID uint
	Run   func(ctx context.Context, report ReportFunc) error
}

type Metrics interface {
	SetQueueDepth(n int)
	SetBusyWorkers(n int)
	IncrementTaskPanics()
}

type nopMetrics struct{}

func (nopMetrics) SetQueueDepth(int)    {}
func (nopMetrics) SetBusyWorkers(int)   {}
func (nopMetrics) IncrementTaskPanics() {}

type Option func(*Runner)

func WithMetrics(m Metrics) Option {
	return func(r *Runner) {
		if m != nil {
			r.metrics = m
		}
	}
}

type Runner struct {
	workers int
	tasks   chan Task
	updates chan Update
	sink    Sink
	metrics Metrics
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	started bool
	stopped bool
	busy    int

	workersWG sync.WaitGroup
	quit      chan struct{}
	loopDone  chan struct{}
}

func New(workers, queueSize int, sink Sink, opts ...Option) *Runner {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		workers:  workers,
		tasks:    make(chan Task, queueSize),
		updates:  make(chan Update, queueSize*4),
		sink:     sink,
		metrics:  nopMetrics{},
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		quit:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Start launches the workers and the status loop. It is a no-op when
// called twice.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true

	for i := 0; i < r.workers; i++ {
		r.workersWG.Add(1)
		go r.work(i)
	}
	go r.loop()

	zap.L().Info("job runner started", zap.Int("workers", r.workers), zap.Int("queue_size", cap(r.tasks)))
}

// Submit queues t without blocking.
func (r *Runner) Submit(t Task) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrStopped
	}

	select {
	case r.tasks <- t:
		r.metrics.SetQueueDepth(len(r.tasks))
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new tasks and waits for queued and running ones to finish.
// When ctx ends first, running tasks see their context cancelled and Stop
// returns ctx.Err().
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	started := r.started
	close(r.tasks)
	r.mu.Unlock()

	if !started {
		r.cancel()
		return nil
	}

	drained := make(chan struct{})
	go func() {
		r.workersWG.Wait()
		close(drained)
	}()

	var err error
	select {
	case <-drained:
	case <-ctx.Done():
		err = ctx.Err()
	}

	r.cancel()
	close(r.quit)
	<-r.loopDone

	zap.L().Info("job runner stopped", zap.Error(err))

	return err
}

func (r *Runner) work(id int) {
	defer r.workersWG.Done()

	for t := range r.tasks {
		r.metrics.SetQueueDepth(len(r.tasks))
		r.setBusy(1)
		r.execute(id, t)
		r.setBusy(-1)
	}
}

func (r *Runner) setBusy(delta int) {
	r.mu.Lock()
	r.busy += delta
	busy := r.busy
	r.mu.Unlock()

	r.metrics.SetBusyWorkers(busy)
}

func (r *Runner) execute(worker int, t Task) {
	var err error

	func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.metrics.IncrementTaskPanics()
				zap.L().Error("job panicked",
					zap.Int("worker", worker),
					zap.Uint("job_id", t.JobID),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				err = fmt.Errorf("job panicked: %v", rec)
			}
		}()

		err = t.Run(r.ctx, func(processed, total int) {
			r.publish(Update{JobID: t.JobID, Kind: KindProgress, Processed: processed, Total: total})
		})
	}()

	if err != nil {
		r.publish(Update{JobID: t.JobID, Kind: KindFailed, Err: err})
		return
	}
	r.publish(Update{JobID: t.JobID, Kind: KindCompleted})
}

func (r *Runner) publish(u Update) {
	u.At = r.now()

	select {
	case r.updates <- u:
	case <-r.quit:
		zap.L().Warn("job update dropped after stop", zap.Uint("job_id", u.JobID), zap.String("kind", string(u.Kind)))
	}
}

func (r *Runner) loop() {
	defer close(r.loopDone)

	for {
		select {
		case u := <-r.updates:
			r.handle(u)
		case <-r.quit:
			for {
				select {
				case u := <-r.updates:
					r.handle(u)
				default:
					return
				}
			}
		}
	}
}

func (r *Runner) handle(u Update) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("job update sink panicked", zap.Uint("job_id", u.JobID), zap.Any("panic", rec))
		}
	}()

	r.sink.Handle(u)
}
