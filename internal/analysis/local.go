package analysis

import (
	"context"
	"io"
	"log/slog"
	"math"

	"github.com/formlab/squatview/internal/types"
)

// Coaching thresholds for the synthetic generator, matching the ones the
// remote analyzer applies.
const (
	kneeAngleArrowBelow   = 90.0
	shoulderDiffArrowOver = 0.1
	shoulderDiffAlertOver = 0.2
)

// LocalGenerator fabricates a structurally valid analysis document from a
// sinusoidal squat cycle. It exists so the rendering pipeline always has
// data to draw when the remote analyzer is unreachable; the numbers are
// plausible, not measured. It implements Analyzer and must stay swappable
// with the remote client.
type LocalGenerator struct {
	// Duration of the fabricated session in seconds. Defaults to 10.
	Duration float64
	// FrameCount is the number of analyzed samples. Defaults to 20.
	FrameCount int
	// Period of one squat repetition in seconds. Defaults to 2.5.
	Period float64
}

// AnalyzeVideo implements Analyzer. The video content is ignored.
func (g *LocalGenerator) AnalyzeVideo(ctx context.Context, video io.Reader, filename string) (*types.Document, error) {
	duration := g.Duration
	if duration <= 0 {
		duration = 10
	}
	count := g.FrameCount
	if count <= 0 {
		count = 20
	}
	period := g.Period
	if period <= 0 {
		period = 2.5
	}

	doc := &types.Document{
		Source:     SourceLocal,
		FPS:        30,
		FrameCount: count,
		Frames:     make([]types.AnalyzedFrame, 0, count),
	}

	step := duration / float64(count)
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ts := float64(i) * step
		doc.Frames = append(doc.Frames, g.frameAt(i, ts, period))
	}

	slog.Warn("using fabricated local analysis",
		"reason", "remote analyzer unavailable",
		"frames", count,
		"duration_s", duration,
	)
	return doc, nil
}

// frameAt synthesizes one sample of the squat cycle. depth runs 0 (standing)
// to 1 (bottom of the squat).
func (g *LocalGenerator) frameAt(index int, ts, period float64) types.AnalyzedFrame {
	phase := 2 * math.Pi * ts / period
	depth := (1 - math.Cos(phase)) / 2
	sway := 0.015 * math.Sin(phase*0.7)

	landmarks := poseAt(depth, sway)

	hip := landmarks[types.RightHip]
	knee := landmarks[types.RightKnee]
	ankle := landmarks[types.RightAnkle]
	shoulder := landmarks[types.RightShoulder]

	kneeAngle := 172 - 84*depth
	depthRatio := depthRatio(hip, knee, ankle)
	shoulderDiff := math.Abs(shoulder.X - ankle.X)

	frame := types.AnalyzedFrame{
		Index:     index,
		Timestamp: ts,
		Landmarks: landmarks,
		Measurements: map[string]float64{
			types.MeasureKneeAngle:           kneeAngle,
			types.MeasureDepthRatio:          depthRatio,
			types.MeasureShoulderMidfootDiff: shoulderDiff,
		},
		Scores: map[string]float64{
			types.ScoreKneeDepth:         math.Round(depth * 100),
			types.ScoreShoulderAlignment: math.Round(shoulderDiff * 400),
			types.ScoreHipFlexion:        math.Round(depth * 90),
			types.ScorePelvicTilt:        math.Round(10 + 20*math.Abs(math.Sin(phase))),
		},
		Status: map[string]string{
			types.RegionSpine: spineStatus(shoulderDiff),
			types.RegionLegs:  legStatus(kneeAngle),
		},
	}

	if kneeAngle < kneeAngleArrowBelow {
		frame.Arrows = append(frame.Arrows, types.Arrow{
			Start:   types.Point{X: knee.X, Y: knee.Y},
			End:     types.Point{X: knee.X, Y: knee.Y - 0.1},
			Color:   "yellow",
			Message: "Knees too bent",
		})
	}
	if shoulderDiff > shoulderDiffArrowOver {
		frame.Arrows = append(frame.Arrows, types.Arrow{
			Start:   types.Point{X: shoulder.X, Y: shoulder.Y},
			End:     types.Point{X: ankle.X, Y: shoulder.Y},
			Color:   "red",
			Message: "Keep shoulders over midfoot",
		})
	}
	return frame
}

// poseAt builds the 33-landmark set for a squat depth. Facial landmarks get
// zero-visibility placeholders to keep the index structure intact, the same
// shape the remote analyzer produces.
func poseAt(depth, sway float64) []types.Landmark {
	lms := make([]types.Landmark, types.NumLandmarks)

	set := func(idx int, x, y float64) {
		lms[idx] = types.Landmark{X: x, Y: y, Visibility: 0.95}
	}

	shoulderY := 0.30 + 0.14*depth
	hipY := 0.50 + 0.16*depth
	kneeY := 0.70 + 0.05*depth
	elbowY := shoulderY + 0.10
	wristY := shoulderY + 0.02 - 0.06*depth // arms raise forward as the lifter descends

	set(types.LeftShoulder, 0.45+sway, shoulderY)
	set(types.RightShoulder, 0.55+sway, shoulderY)
	set(types.LeftElbow, 0.40+sway, elbowY)
	set(types.RightElbow, 0.60+sway, elbowY)
	set(types.LeftWrist, 0.36+sway, wristY)
	set(types.RightWrist, 0.64+sway, wristY)
	set(types.LeftHip, 0.46+sway*0.5, hipY)
	set(types.RightHip, 0.54+sway*0.5, hipY)
	set(types.LeftKnee, 0.44, kneeY)
	set(types.RightKnee, 0.56, kneeY)
	set(types.LeftAnkle, 0.45, 0.88)
	set(types.RightAnkle, 0.55, 0.88)
	set(types.LeftHeel, 0.44, 0.91)
	set(types.RightHeel, 0.56, 0.91)
	set(types.LeftFootIndex, 0.47, 0.93)
	set(types.RightFootIndex, 0.53, 0.93)

	return lms
}

// depthRatio relates squat depth to total leg length, both measured on the
// vertical axis.
func depthRatio(hip, knee, ankle types.Landmark) float64 {
	legLength := math.Abs(hip.Y - ankle.Y)
	if legLength == 0 {
		return 0
	}
	return math.Abs(knee.Y-ankle.Y) / legLength
}

func spineStatus(shoulderDiff float64) string {
	switch {
	case shoulderDiff > shoulderDiffAlertOver:
		return types.StatusBad
	case shoulderDiff > shoulderDiffArrowOver:
		return types.StatusWarn
	default:
		return types.StatusGood
	}
}

func legStatus(kneeAngle float64) string {
	if kneeAngle < kneeAngleArrowBelow {
		return types.StatusWarn
	}
	return types.StatusGood
}
