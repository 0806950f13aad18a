package score

import (
	"math"
	"testing"

	"github.com/formlab/squatview/internal/types"
)

func frameWithScores(ts float64, scores map[string]float64) types.AnalyzedFrame {
	return types.AnalyzedFrame{Timestamp: ts, Scores: scores}
}

func TestMerge_TotalRequiresAllMetrics(t *testing.T) {
	frames := []types.AnalyzedFrame{
		frameWithScores(0, map[string]float64{types.ScoreKneeDepth: 90}),
		frameWithScores(1, map[string]float64{types.ScoreKneeDepth: 60}),
	}

	s := Merge(frames)
	if s.HasTotal() {
		t.Errorf("Total = %v, want undefined when only knee depth is present", s.Total)
	}
	if s.KneeDepth != 90 {
		t.Errorf("KneeDepth = %v, want 90 (session max)", s.KneeDepth)
	}
	if !math.IsNaN(s.ShoulderAlignment) {
		t.Errorf("ShoulderAlignment = %v, want NaN for absent metric", s.ShoulderAlignment)
	}
}

func TestMerge_WeightedTotal(t *testing.T) {
	frames := []types.AnalyzedFrame{
		frameWithScores(0, map[string]float64{
			types.ScoreKneeDepth:         90,
			types.ScoreShoulderAlignment: 10,
			types.ScoreHipFlexion:        80,
			types.ScorePelvicTilt:        20,
		}),
	}

	s := Merge(frames)
	if !s.HasTotal() {
		t.Fatal("expected total to be defined")
	}
	// 90*0.4 + 10*0.3 + 80*0.2 + 20*0.1 = 36+3+16+2 = 57
	if math.Abs(s.Total-57) > 1e-9 {
		t.Errorf("Total = %v, want 57", s.Total)
	}
}

func TestMerge_PolarityAggregation(t *testing.T) {
	frames := []types.AnalyzedFrame{
		frameWithScores(0, map[string]float64{
			types.ScoreKneeDepth:         40,
			types.ScoreShoulderAlignment: 30,
			types.ScoreHipFlexion:        50,
			types.ScorePelvicTilt:        60,
		}),
		frameWithScores(1, map[string]float64{
			types.ScoreKneeDepth:         80,
			types.ScoreShoulderAlignment: 10,
			types.ScoreHipFlexion:        20,
			types.ScorePelvicTilt:        90,
		}),
	}

	s := Merge(frames)
	if s.KneeDepth != 80 {
		t.Errorf("KneeDepth = %v, want max 80", s.KneeDepth)
	}
	if s.ShoulderAlignment != 10 {
		t.Errorf("ShoulderAlignment = %v, want min 10", s.ShoulderAlignment)
	}
	if s.HipFlexion != 50 {
		t.Errorf("HipFlexion = %v, want max 50", s.HipFlexion)
	}
	if s.PelvicTilt != 60 {
		t.Errorf("PelvicTilt = %v, want min 60", s.PelvicTilt)
	}
}

func TestMerge_IgnoresNonFiniteValues(t *testing.T) {
	frames := []types.AnalyzedFrame{
		frameWithScores(0, map[string]float64{types.ScoreKneeDepth: math.NaN()}),
		frameWithScores(1, map[string]float64{types.ScoreKneeDepth: 70}),
	}

	s := Merge(frames)
	if s.KneeDepth != 70 {
		t.Errorf("KneeDepth = %v, want 70 (NaN samples skipped)", s.KneeDepth)
	}
}

func TestMerge_EmptyFrames(t *testing.T) {
	s := Merge(nil)
	if s.HasTotal() {
		t.Errorf("Total = %v, want undefined for empty session", s.Total)
	}
}
