package domain

import "time"

// Event is one edition of the job shadow day.
type Event struct {
	ID         uint      `json:"id"`
	Name       string    `json:"name"`
	SchoolYear string    `json:"school_year"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
