package domain

type AssignedStudent struct {
	ResultID  uint         `json:"result_id"`
	StudentID uint         `json:"student_id"`
	Name      string       `json:"name"`
	Email     string       `json:"email"`
	Grade     int          `json:"grade"`
	Origin    ResultOrigin `json:"origin"`
	// Rank the student gave this position, nil when it was never chosen.
	Rank *int `json:"rank"`
}

type PositionAssignments struct {
	PositionID uint              `json:"position_id"`
	Slots      int               `json:"slots"`
	Position   PositionSnapshot  `json:"position"`
	Students   []AssignedStudent `json:"students"`
}

type UnplacedStudent struct {
	StudentID  uint   `json:"student_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Grade      int    `json:"grade"`
	HasChoices bool   `json:"has_choices"`
}

// RankTally counts placements by choice rank plus the manual, not placed
// and no choices buckets.
type RankTally struct {
	ByRank    map[int]int `json:"by_rank"`
	Manual    int         `json:"manual"`
	NotPlaced int         `json:"not_placed"`
	NoChoices int         `json:"no_choices"`
}

func NewRankTally() RankTally {
	return RankTally{ByRank: map[int]int{}}
}

func (t RankTally) Placed() int {
	n := t.Manual
	for _, c := range t.ByRank {
		n += c
	}
	return n
}

type PositionTally struct {
	PositionID uint      `json:"position_id"`
	Title      string    `json:"title"`
	CompanyID  uint      `json:"company_id"`
	Tally      RankTally `json:"tally"`
}

type CompanyTally struct {
	CompanyID uint      `json:"company_id"`
	Name      string    `json:"name"`
	Tally     RankTally `json:"tally"`
}

type LotteryStats struct {
	JobID     uint            `json:"job_id"`
	EventID   uint            `json:"event_id"`
	Overall   RankTally       `json:"overall"`
	Positions []PositionTally `json:"positions"`
	Companies []CompanyTally  `json:"companies"`
}
