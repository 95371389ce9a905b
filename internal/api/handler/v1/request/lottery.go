package request

import (
	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

type StartLotteryRequest struct {
	GradeOrder domain.GradeOrder `json:"grade_order"`
	// Seed replays an earlier draw.
	Seed *int64 `json:"seed,omitempty"`
}

func (req *StartLotteryRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.GradeOrder, validation.Required, validation.In(
			domain.GradeOrderNone,
			domain.GradeOrderAscending,
			domain.GradeOrderDescending,
		)),
		validation.Field(&req.Seed, validation.Min(int64(0)), validation.Max(domain.MaxSeed-1)),
	)
}

type ClaimRequest struct {
	StudentID  uint `json:"student_id"`
	PositionID uint `json:"position_id"`
}

func (req *ClaimRequest) Validate() error {
	return validation.ValidateStruct(
		req,
		validation.Field(&req.StudentID, validation.Required),
		validation.Field(&req.PositionID, validation.Required),
	)
}
