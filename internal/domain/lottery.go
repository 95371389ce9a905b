package domain

import (
	"time"

	"github.com/google/uuid"
)

type GradeOrder string

const (
	GradeOrderNone       GradeOrder = "NONE"
	GradeOrderAscending  GradeOrder = "ASCENDING"
	GradeOrderDescending GradeOrder = "DESCENDING"
)

func (o GradeOrder) Valid() bool {
	switch o {
	case GradeOrderNone, GradeOrderAscending, GradeOrderDescending:
		return true
	}
	return false
}

// MaxSeed bounds draw seeds so they survive a round trip through a
// JSON number in a JavaScript client.
const MaxSeed int64 = 1 << 53

type JobStatus string

const (
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ResultOrigin records how a result row came to exist.
type ResultOrigin string

const (
	OriginLotteryRank    ResultOrigin = "LOTTERY_RANK"
	OriginLotteryPrefill ResultOrigin = "LOTTERY_PREFILL"
	OriginManualPin      ResultOrigin = "MANUAL_PIN"
	OriginManualPostHoc  ResultOrigin = "MANUAL_POST_HOC"
)

func (o ResultOrigin) Manual() bool {
	return o == OriginManualPin || o == OriginManualPostHoc
}

type SkipReason string

const (
	SkipCapacityExhausted   SkipReason = "CAPACITY_EXHAUSTED"
	SkipStudentIneligible   SkipReason = "STUDENT_INELIGIBLE"
	SkipPositionUnavailable SkipReason = "POSITION_UNAVAILABLE"
	SkipDuplicateStudent    SkipReason = "DUPLICATE_STUDENT"
)

type SkippedPin struct {
	StudentID  uint       `json:"student_id"`
	PositionID uint       `json:"position_id"`
	Reason     SkipReason `json:"reason"`
}

// JobCounts summarises a finished run. Placed + NotPlaced + NoChoices
// always equals Eligible.
type JobCounts struct {
	Eligible    int `json:"eligible"`
	Placed      int `json:"placed"`
	NotPlaced   int `json:"not_placed"`
	NoChoices   int `json:"no_choices"`
	SkippedPins int `json:"skipped_pins"`
}

type LotteryJob struct {
	ID           uint         `json:"id"`
	RunID        uuid.UUID    `json:"run_id"`
	EventID      uint         `json:"event_id"`
	AdminID      uint         `json:"admin_id"`
	Status       JobStatus    `json:"status"`
	Progress     int          `json:"progress"`
	Seed         int64        `json:"seed"`
	GradeOrder   GradeOrder   `json:"grade_order"`
	Message      string       `json:"message,omitempty"`
	Counts       JobCounts    `json:"counts"`
	SkippedPins  []SkippedPin `json:"skipped_pins,omitempty"`
	SnapshotHash string       `json:"snapshot_hash,omitempty"`
	ResultHash   string       `json:"result_hash,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
}

func (j LotteryJob) IsRunning() bool {
	return j.Status == JobRunning
}

// PositionSnapshot freezes the position details shown with a result so
// history survives later edits of the live position.
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

func SnapshotOf(p Position) PositionSnapshot {
	return PositionSnapshot{
		Title:        p.Title,
		CompanyID:    p.CompanyID,
		CompanyName:  p.Company.Name,
		Location:     p.Location,
		Schedule:     p.Schedule,
		ContactName:  p.ContactName,
		ContactEmail: p.ContactEmail,
		ContactPhone: p.ContactPhone,
	}
}

type LotteryResult struct {
	ID         uint             `json:"id"`
	JobID      uint             `json:"job_id"`
	EventID    uint             `json:"event_id"`
	StudentID  uint             `json:"student_id"`
	PositionID uint             `json:"position_id"`
	Origin     ResultOrigin     `json:"origin"`
	Rank       *int             `json:"rank,omitempty"`
	Position   PositionSnapshot `json:"position"`
	CreatedAt  time.Time        `json:"created_at"`
}
