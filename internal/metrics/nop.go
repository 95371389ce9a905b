package metrics

import (
	"time"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

// NopMetrics discards everything. Used in tests and when /metrics is off.
type NopMetrics struct{}

func NewNop() *NopMetrics {
	return &NopMetrics{}
}

func (n *NopMetrics) RecordJobStarted() {}

func (n *NopMetrics) RecordJobFinished(_ /* status */ domain.JobStatus, _ /* duration */ time.Duration) {
}

func (n *NopMetrics) RecordDraw(_ domain.JobCounts, _ /* skipped */ []domain.SkippedPin) {}

func (n *NopMetrics) RecordCommit(_ /* result */ string, _ /* duration */ time.Duration) {}

func (n *NopMetrics) SetQueueDepth(_ int) {}

func (n *NopMetrics) SetBusyWorkers(_ int) {}

func (n *NopMetrics) IncrementTaskPanics() {}
