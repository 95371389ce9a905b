package lottery

import "github.com/vietanh2810/jobshadow-api/internal/domain"

type Assignment struct {
	StudentID  uint                `json:"student_id"`
	PositionID uint                `json:"position_id"`
	Origin     domain.ResultOrigin `json:"origin"`
	// Rank is the rank the student gave the position, 0 if none.
	Rank int `json:"rank,omitempty"`
}

// Outcome lists assignments in the order they were made: pins, prefill,
// then the draw.
type Outcome struct {
	Seed        int64               `json:"seed"`
	Eligible    int                 `json:"eligible"`
	Assignments []Assignment        `json:"assignments"`
	SkippedPins []domain.SkippedPin `json:"skipped_pins"`
	NotPlaced   []uint              `json:"not_placed"`
	NoChoices   []uint              `json:"no_choices"`
}

func (o Outcome) Counts() domain.JobCounts {
	return domain.JobCounts{
		Eligible:    o.Eligible,
		Placed:      len(o.Assignments),
		NotPlaced:   len(o.NotPlaced),
		NoChoices:   len(o.NoChoices),
		SkippedPins: len(o.SkippedPins),
	}
}

func (o Outcome) Fingerprint() (string, error) {
	return fingerprint(o)
}
