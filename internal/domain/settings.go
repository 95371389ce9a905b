package domain

import "time"

// ManualAssignment pins a student to a position ahead of the draw.
type ManualAssignment struct {
	ID         uint      `json:"id"`
	EventID    uint      `json:"event_id"`
	StudentID  uint      `json:"student_id"`
	PositionID uint      `json:"position_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// PrefillQuota reserves a share of a position for its top choosers.
// Slots is the capacity recorded when the quota was configured; the draw
// uses the live capacity of the snapshot.
type PrefillQuota struct {
	ID         uint      `json:"id"`
	EventID    uint      `json:"event_id"`
	PositionID uint      `json:"position_id"`
	CompanyID  uint      `json:"company_id"`
	Slots      int       `json:"slots"`
	Percentage int       `json:"percentage"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Reserved is floor(percentage/100 * slots).
func (q PrefillQuota) Reserved(slots int) int {
	if slots <= 0 || q.Percentage <= 0 {
		return 0
	}
	return q.Percentage * slots / 100
}
