package lottery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/zeebo/xxh3"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

var ErrMalformedSnapshot = errors.New("malformed lottery snapshot")

// SnapshotError describes the first problem found in a snapshot.
type SnapshotError struct {
	Field  string
	ID     uint
	Reason string
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("%s: %s %d: %s", ErrMalformedSnapshot, e.Field, e.ID, e.Reason)
}

func (e *SnapshotError) Unwrap() error {
	return ErrMalformedSnapshot
}

type Preference struct {
	PositionID uint `json:"position_id"`
	Rank       int  `json:"rank"`
}

// Student is an eligible participant. Preferences keep their stored order;
// equal ranks are resolved by that order.
type Student struct {
	ID          uint         `json:"id"`
	Grade       int          `json:"grade"`
	Preferences []Preference `json:"preferences"`
}

type Position struct {
	ID    uint `json:"id"`
	Slots int  `json:"slots"`
}

type Pin struct {
	StudentID  uint `json:"student_id"`
	PositionID uint `json:"position_id"`
}

type Quota struct {
	PositionID uint `json:"position_id"`
	Percentage int  `json:"percentage"`
}

// Snapshot is the frozen input of one run. Slice order is significant: it
// is the order pins and quotas are applied and the base order of the pool.
type Snapshot struct {
	EventID    uint              `json:"event_id"`
	GradeOrder domain.GradeOrder `json:"grade_order"`
	Students   []Student         `json:"students"`
	Positions  []Position        `json:"positions"`
	Pins       []Pin             `json:"pins"`
	Quotas     []Quota           `json:"quotas"`
}

// Validate rejects snapshots the engine cannot run on. Pins are not
// checked here: a pin that does not resolve is skipped, not fatal.
func (s Snapshot) Validate() error {
	if !s.GradeOrder.Valid() {
		return &SnapshotError{Field: "grade_order", Reason: "unknown policy " + strconv.Quote(string(s.GradeOrder))}
	}

	positions := make(map[uint]struct{}, len(s.Positions))
	for _, p := range s.Positions {
		if _, dup := positions[p.ID]; dup {
			return &SnapshotError{Field: "position", ID: p.ID, Reason: "duplicate id"}
		}
		if p.Slots < 0 {
			return &SnapshotError{Field: "position", ID: p.ID, Reason: "negative capacity"}
		}
		positions[p.ID] = struct{}{}
	}

	students := make(map[uint]struct{}, len(s.Students))
	for _, st := range s.Students {
		if _, dup := students[st.ID]; dup {
			return &SnapshotError{Field: "student", ID: st.ID, Reason: "duplicate id"}
		}
		students[st.ID] = struct{}{}

		seen := make(map[uint]struct{}, len(st.Preferences))
		for _, pref := range st.Preferences {
			if pref.Rank < 1 {
				return &SnapshotError{Field: "student", ID: st.ID, Reason: fmt.Sprintf("rank %d for position %d", pref.Rank, pref.PositionID)}
			}
			if _, ok := positions[pref.PositionID]; !ok {
				return &SnapshotError{Field: "student", ID: st.ID, Reason: fmt.Sprintf("preference for unknown position %d", pref.PositionID)}
			}
			if _, dup := seen[pref.PositionID]; dup {
				return &SnapshotError{Field: "student", ID: st.ID, Reason: fmt.Sprintf("position %d ranked twice", pref.PositionID)}
			}
			seen[pref.PositionID] = struct{}{}
		}
	}

	quotas := make(map[uint]struct{}, len(s.Quotas))
	for _, q := range s.Quotas {
		if _, ok := positions[q.PositionID]; !ok {
			return &SnapshotError{Field: "quota", ID: q.PositionID, Reason: "unknown position"}
		}
		if _, dup := quotas[q.PositionID]; dup {
			return &SnapshotError{Field: "quota", ID: q.PositionID, Reason: "duplicate quota"}
		}
		if q.Percentage < 0 || q.Percentage > 100 {
			return &SnapshotError{Field: "quota", ID: q.PositionID, Reason: fmt.Sprintf("percentage %d out of range", q.Percentage)}
		}
		quotas[q.PositionID] = struct{}{}
	}

	return nil
}

// Fingerprint is the xxh3 hash of the canonical JSON encoding.
func (s Snapshot) Fingerprint() (string, error) {
	return fingerprint(s)
}

func fingerprint(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("json.Marshal -> %w", err)
	}

	return strconv.FormatUint(xxh3.Hash(b), 16), nil
}
