// Package score merges per-frame quality scores into a session summary.
package score

import (
	"math"

	"github.com/formlab/squatview/internal/types"
)

// Weights of the four component metrics in the weighted total.
const (
	weightKneeDepth         = 0.4
	weightShoulderAlignment = 0.3
	weightHipFlexion        = 0.2
	weightPelvicTilt        = 0.1
)

// Summary aggregates component scores across a whole analyzed session.
//
// Aggregation direction follows metric polarity: knee depth and hip flexion
// are "higher is better" and take the session max; shoulder alignment and
// pelvic tilt are "lower is better" and take the session min. Total is NaN
// unless every component metric appears somewhere in the frame set.
type Summary struct {
	KneeDepth         float64
	ShoulderAlignment float64
	HipFlexion        float64
	PelvicTilt        float64
	Total             float64
}

// HasTotal reports whether all four component metrics were present.
func (s Summary) HasTotal() bool {
	return !math.IsNaN(s.Total)
}

// Merge computes the session summary over all frames. Absent metrics are NaN.
func Merge(frames []types.AnalyzedFrame) Summary {
	kd := aggregate(frames, types.ScoreKneeDepth, math.Max)
	sa := aggregate(frames, types.ScoreShoulderAlignment, math.Min)
	hf := aggregate(frames, types.ScoreHipFlexion, math.Max)
	pt := aggregate(frames, types.ScorePelvicTilt, math.Min)

	s := Summary{
		KneeDepth:         kd,
		ShoulderAlignment: sa,
		HipFlexion:        hf,
		PelvicTilt:        pt,
		Total:             math.NaN(),
	}

	if finite(kd) && finite(sa) && finite(hf) && finite(pt) {
		s.Total = kd*weightKneeDepth +
			sa*weightShoulderAlignment +
			hf*weightHipFlexion +
			pt*weightPelvicTilt
	}
	return s
}

// aggregate folds one metric across the frame set with the given combiner,
// returning NaN when no frame carries the metric.
func aggregate(frames []types.AnalyzedFrame, key string, combine func(a, b float64) float64) float64 {
	acc := math.NaN()
	seen := false
	for i := range frames {
		v, ok := frames[i].Scores[key]
		if !ok || !finite(v) {
			continue
		}
		if !seen {
			acc = v
			seen = true
			continue
		}
		acc = combine(acc, v)
	}
	return acc
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
