package response

import (
	"github.com/google/uuid"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

type StartLotteryResponse struct {
	JobID   uint             `json:"job_id"`
	RunID   uuid.UUID        `json:"run_id"`
	EventID uint             `json:"event_id"`
	Status  domain.JobStatus `json:"status"`
	Seed    int64            `json:"seed"`
}

type RemovedResponse struct {
	Removed int64 `json:"removed"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
