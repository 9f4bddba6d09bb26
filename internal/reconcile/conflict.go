package reconcile

import (
	"signup-gateway/internal/festival"
)

// Status is the rendered state of one activity row for one participant.
type Status string

const (
	StatusSubscribed Status = "subscribed"
	StatusFull       Status = "full"
	StatusConflict   Status = "conflict"
	StatusAvailable  Status = "available"
)

// Evaluator answers scheduling questions for one participant against one
// candidate activity list. The held set and candidates are fixed at
// construction; build a fresh evaluator after any profile refresh.
type Evaluator struct {
	held       map[festival.ID]bool
	candidates []*festival.Activity
	loggedIn   bool
}

// NewEvaluator builds an evaluator. subscribedIDs may be nil for anonymous
// users; then nothing is held and nothing conflicts.
func NewEvaluator(subscribedIDs []festival.ID, candidates []*festival.Activity, loggedIn bool) *Evaluator {
	held := make(map[festival.ID]bool, len(subscribedIDs))
	for _, id := range subscribedIDs {
		held[id] = true
	}
	return &Evaluator{held: held, candidates: candidates, loggedIn: loggedIn}
}

// IsSubscribed reports whether the participant holds the given activity.
func (e *Evaluator) IsSubscribed(id festival.ID) bool {
	return e.held[id]
}

// HasTimeOverlap reports whether two activities occupy overlapping time.
// Intervals are half-open: an activity ending exactly when another starts
// is not a conflict. Malformed timestamps parse to the zero time and the
// zero time never overlaps anything.
func HasTimeOverlap(a, b *festival.Activity) bool {
	aStart, aEnd := ParseInstant(a.Start), ParseInstant(a.End)
	bStart, bEnd := ParseInstant(b.Start), ParseInstant(b.End)
	if aStart.IsZero() || aEnd.IsZero() || bStart.IsZero() || bEnd.IsZero() {
		return false
	}
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// ConflictsFor returns the held activities that overlap the target in time.
// A held target never conflicts with itself or with anything else: the
// participant already committed to it.
func (e *Evaluator) ConflictsFor(target *festival.Activity) []*festival.Activity {
	if !e.loggedIn || e.held[target.ID] {
		return nil
	}
	var conflicts []*festival.Activity
	for _, c := range e.candidates {
		if !e.held[c.ID] || c.ID == target.ID {
			continue
		}
		if HasTimeOverlap(target, c) {
			conflicts = append(conflicts, c)
		}
	}
	return conflicts
}

// IsFull reports whether the activity reached capacity. Without a known
// capacity the activity is never full.
func IsFull(a *festival.Activity) bool {
	capacity, ok := a.EffectiveCapacity()
	if !ok {
		return false
	}
	return a.EffectiveSubscriptions() >= capacity
}

// StatusFor resolves the row status in strict priority order: a held
// activity shows subscribed even when over capacity, a full one shows full
// even when it also conflicts.
func (e *Evaluator) StatusFor(a *festival.Activity) Status {
	if e.held[a.ID] {
		return StatusSubscribed
	}
	if IsFull(a) {
		return StatusFull
	}
	if len(e.ConflictsFor(a)) > 0 {
		return StatusConflict
	}
	return StatusAvailable
}

// EligibleFor reports whether the participant can subscribe right now:
// logged in, activity not full, not already held, and no overlap with a
// held activity.
func (e *Evaluator) EligibleFor(a *festival.Activity) bool {
	return e.loggedIn && e.StatusFor(a) == StatusAvailable
}
