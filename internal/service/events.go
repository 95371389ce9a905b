package service

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

const subscriberBuffer = 16

// JobEvent is pushed to subscribers of a job whenever its progress or
// status changes.
type JobEvent struct {
	JobID    uint              `json:"job_id"`
	Status   domain.JobStatus  `json:"status"`
	Progress int               `json:"progress"`
	Counts   *domain.JobCounts `json:"counts,omitempty"`
	Message  string            `json:"message,omitempty"`
}

func (e JobEvent) Terminal() bool {
	return e.Status.Terminal()
}

type jobSubscriber struct {
	jobID  uint
	ch     chan JobEvent
	mu     sync.Mutex
	closed bool
}

// trySend never blocks. A slow subscriber misses intermediate progress.
func (s *jobSubscriber) trySend(ev JobEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- ev:
	default:
	}
}

func (s *jobSubscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

type jobEvents struct {
	subscribers *xsync.Map[uint64, *jobSubscriber]
	nextID      atomic.Uint64
}

func newJobEvents() *jobEvents {
	return &jobEvents{subscribers: xsync.NewMap[uint64, *jobSubscriber]()}
}

func (h *jobEvents) add(jobID uint) (uint64, *jobSubscriber) {
	id := h.nextID.Add(1)
	sub := &jobSubscriber{jobID: jobID, ch: make(chan JobEvent, subscriberBuffer)}
	h.subscribers.Store(id, sub)
	return id, sub
}

func (h *jobEvents) remove(id uint64) {
	if sub, ok := h.subscribers.LoadAndDelete(id); ok {
		sub.close()
	}
}

// publish fans ev out to the job's subscribers. A terminal event is the
// last one: subscribers are dropped and their channels closed.
func (h *jobEvents) publish(ev JobEvent) {
	h.subscribers.Range(func(id uint64, sub *jobSubscriber) bool {
		if sub.jobID != ev.JobID {
			return true
		}
		sub.trySend(ev)
		if ev.Terminal() {
			h.remove(id)
		}
		return true
	})
}

func (h *jobEvents) size() int {
	return h.subscribers.Size()
}
