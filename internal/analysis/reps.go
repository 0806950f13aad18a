package analysis

import (
	"math"

	"github.com/formlab/squatview/internal/types"
)

// Knee-height thresholds (normalized y, larger = lower in frame) that drive
// the squat state machine. The gap between them is hysteresis so jitter at
// mid-squat cannot double-count repetitions.
const (
	kneeDownThreshold = 0.6
	kneeUpThreshold   = 0.4
)

// SquatState is the phase of the lifter within a repetition.
type SquatState string

const (
	StateStanding  SquatState = "standing"
	StateSquatting SquatState = "squatting"
)

// Rep records one completed repetition.
type Rep struct {
	// Start is the timestamp the lifter left standing.
	Start float64
	// End is the timestamp they returned to standing.
	End float64
}

// RepTracker counts squat repetitions by feeding analyzed frames through a
// two-state machine keyed on average knee height.
type RepTracker struct {
	state     SquatState
	descentAt float64
	reps      []Rep
}

// NewRepTracker returns a tracker in the standing state.
func NewRepTracker() *RepTracker {
	return &RepTracker{state: StateStanding}
}

// Feed advances the state machine with one frame. Frames whose knee
// landmarks are missing or invisible leave the state unchanged.
func (t *RepTracker) Feed(f types.AnalyzedFrame) {
	kneeY, ok := averageKneeY(f.Landmarks)
	if !ok {
		return
	}
	switch t.state {
	case StateStanding:
		if kneeY > kneeDownThreshold {
			t.state = StateSquatting
			t.descentAt = f.Timestamp
		}
	case StateSquatting:
		if kneeY < kneeUpThreshold {
			t.state = StateStanding
			t.reps = append(t.reps, Rep{Start: t.descentAt, End: f.Timestamp})
		}
	}
}

// FeedDocument runs every frame of a document through the tracker.
func (t *RepTracker) FeedDocument(doc *types.Document) {
	if doc == nil {
		return
	}
	for _, f := range doc.Frames {
		t.Feed(f)
	}
}

// Count reports completed repetitions.
func (t *RepTracker) Count() int { return len(t.reps) }

// Reps returns the completed repetitions in order.
func (t *RepTracker) Reps() []Rep { return t.reps }

// State reports the current phase.
func (t *RepTracker) State() SquatState { return t.state }

func averageKneeY(lms []types.Landmark) (float64, bool) {
	if len(lms) <= types.RightKnee {
		return 0, false
	}
	left, right := lms[types.LeftKnee], lms[types.RightKnee]
	if !left.Valid() || !right.Valid() {
		return 0, false
	}
	if left.Visibility < 0.5 || right.Visibility < 0.5 {
		return 0, false
	}
	y := (left.Y + right.Y) / 2
	if math.IsNaN(y) {
		return 0, false
	}
	return y, true
}
