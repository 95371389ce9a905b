// Package lottery implements the job shadow assignment draw.
//
// A run is a pure function of a Snapshot and a seed: manual pins first,
// then prefill quotas, then a rank-greedy draw over students ordered by
// the grade policy. All randomness comes from one PCG generator seeded
// with the run seed and consumed in that fixed order.
package lottery

import (
	"slices"
	"sort"

	"github.com/vietanh2810/jobshadow-api/internal/domain"
)

const (
	// prefillTopChoices is how deep in a student's list a position may sit
	// for the student to be a prefill candidate.
	prefillTopChoices = 3

	defaultProgressBatch = 50
)

// ProgressFunc receives the number of draw-phase students processed so far.
type ProgressFunc func(processed, total int)

type options struct {
	batch    int
	progress ProgressFunc
}

type Option func(*options)

// WithProgress reports every batch students of the draw phase and once
// when the draw ends.
func WithProgress(batch int, fn ProgressFunc) Option {
	return func(o *options) {
		if batch > 0 {
			o.batch = batch
		}
		o.progress = fn
	}
}

// Run computes the assignment for snap. It returns an error only when the
// snapshot is malformed, in which case the Outcome is empty.
func Run(snap Snapshot, seed int64, opts ...Option) (Outcome, error) {
	if err := snap.Validate(); err != nil {
		return Outcome{}, err
	}

	o := options{batch: defaultProgressBatch}
	for _, opt := range opts {
		opt(&o)
	}

	d := newDraw(snap, seed)
	d.applyPins()
	d.applyQuotas()
	order := d.priorityOrder()
	d.rankGreedy(order, o)

	return d.out, nil
}

type draw struct {
	snap      Snapshot
	rng       *source
	slots     map[uint]int
	remaining map[uint]int
	pinned    map[uint]int
	students  map[uint]int
	prefs     map[uint][]Preference
	placed    map[uint]bool
	out       Outcome
}

func newDraw(snap Snapshot, seed int64) *draw {
	d := &draw{
		snap:      snap,
		rng:       newSource(seed),
		slots:     make(map[uint]int, len(snap.Positions)),
		remaining: make(map[uint]int, len(snap.Positions)),
		pinned:    make(map[uint]int),
		students:  make(map[uint]int, len(snap.Students)),
		prefs:     make(map[uint][]Preference, len(snap.Students)),
		placed:    make(map[uint]bool, len(snap.Students)),
		out: Outcome{
			Seed:        seed,
			Eligible:    len(snap.Students),
			Assignments: []Assignment{},
			SkippedPins: []domain.SkippedPin{},
			NotPlaced:   []uint{},
			NoChoices:   []uint{},
		},
	}

	for _, p := range snap.Positions {
		d.slots[p.ID] = max(p.Slots, 0)
		d.remaining[p.ID] = max(p.Slots, 0)
	}

	for i, st := range snap.Students {
		d.students[st.ID] = i
		prefs := slices.Clone(st.Preferences)
		// Stable: equal ranks keep their stored order.
		sort.SliceStable(prefs, func(a, b int) bool { return prefs[a].Rank < prefs[b].Rank })
		d.prefs[st.ID] = prefs
	}

	return d
}

func (d *draw) rankOf(studentID, positionID uint) int {
	for _, p := range d.prefs[studentID] {
		if p.PositionID == positionID {
			return p.Rank
		}
	}
	return 0
}

func (d *draw) assign(studentID, positionID uint, origin domain.ResultOrigin) {
	d.remaining[positionID]--
	d.placed[studentID] = true
	d.out.Assignments = append(d.out.Assignments, Assignment{
		StudentID:  studentID,
		PositionID: positionID,
		Origin:     origin,
		Rank:       d.rankOf(studentID, positionID),
	})
}

func (d *draw) skip(pin Pin, reason domain.SkipReason) {
	d.out.SkippedPins = append(d.out.SkippedPins, domain.SkippedPin{
		StudentID:  pin.StudentID,
		PositionID: pin.PositionID,
		Reason:     reason,
	})
}

func (d *draw) applyPins() {
	for _, pin := range d.snap.Pins {
		if _, ok := d.students[pin.StudentID]; !ok {
			d.skip(pin, domain.SkipStudentIneligible)
			continue
		}
		left, ok := d.remaining[pin.PositionID]
		switch {
		case !ok:
			d.skip(pin, domain.SkipPositionUnavailable)
		case d.placed[pin.StudentID]:
			d.skip(pin, domain.SkipDuplicateStudent)
		case left <= 0:
			d.skip(pin, domain.SkipCapacityExhausted)
		default:
			d.pinned[pin.PositionID]++
			d.assign(pin.StudentID, pin.PositionID, domain.OriginManualPin)
		}
	}
}

func (d *draw) applyQuotas() {
	for _, q := range d.snap.Quotas {
		quota := q.Percentage*d.slots[q.PositionID]/100 - d.pinned[q.PositionID]
		quota = min(max(quota, 0), d.remaining[q.PositionID])
		if quota == 0 {
			continue
		}

		var candidates []uint
		for _, st := range d.snap.Students {
			if !d.placed[st.ID] && d.inTopChoices(st.ID, q.PositionID) {
				candidates = append(candidates, st.ID)
			}
		}

		// Partial Fisher-Yates: the first k slots become the winners.
		k := min(quota, len(candidates))
		for i := 0; i < k; i++ {
			j := i + d.rng.intN(len(candidates)-i)
			candidates[i], candidates[j] = candidates[j], candidates[i]
			d.assign(candidates[i], q.PositionID, domain.OriginLotteryPrefill)
		}
	}
}

func (d *draw) inTopChoices(studentID, positionID uint) bool {
	prefs := d.prefs[studentID]
	for i := 0; i < len(prefs) && i < prefillTopChoices; i++ {
		if prefs[i].PositionID == positionID {
			return true
		}
	}
	return false
}

// priorityOrder moves students without choices aside and orders the rest
// according to the grade policy.
func (d *draw) priorityOrder() []uint {
	var pool []uint
	for _, st := range d.snap.Students {
		if d.placed[st.ID] {
			continue
		}
		if len(d.prefs[st.ID]) == 0 {
			d.out.NoChoices = append(d.out.NoChoices, st.ID)
			continue
		}
		pool = append(pool, st.ID)
	}

	if d.snap.GradeOrder == domain.GradeOrderNone {
		shuffle(d.rng, pool)
		return pool
	}

	groups := make(map[int][]uint)
	var grades []int
	for _, id := range pool {
		grade := d.snap.Students[d.students[id]].Grade
		if _, ok := groups[grade]; !ok {
			grades = append(grades, grade)
		}
		groups[grade] = append(groups[grade], id)
	}

	slices.Sort(grades)
	if d.snap.GradeOrder == domain.GradeOrderDescending {
		slices.Reverse(grades)
	}

	ordered := make([]uint, 0, len(pool))
	for _, grade := range grades {
		group := groups[grade]
		shuffle(d.rng, group)
		ordered = append(ordered, group...)
	}

	return ordered
}

func (d *draw) rankGreedy(order []uint, o options) {
	total := len(order)
	for i, id := range order {
		placed := false
		for _, pref := range d.prefs[id] {
			if d.remaining[pref.PositionID] > 0 {
				d.assign(id, pref.PositionID, domain.OriginLotteryRank)
				placed = true
				break
			}
		}
		if !placed {
			d.out.NotPlaced = append(d.out.NotPlaced, id)
		}

		if o.progress != nil && (i+1)%o.batch == 0 && i+1 != total {
			o.progress(i+1, total)
		}
	}

	if o.progress != nil {
		o.progress(total, total)
	}
}
