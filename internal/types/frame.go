package types

import "math"

// Pose landmark indices following the MediaPipe 33-point convention.
// Facial landmarks (0-10) are carried for index stability but never drawn.
const (
	Nose           = 0
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32

	NumLandmarks = 33
)

// Canonical score keys. The analysis boundary maps every upstream spelling
// (camelCase, abbreviated) onto these before a frame enters the pipeline.
const (
	ScoreKneeDepth         = "knee_depth"
	ScoreShoulderAlignment = "shoulder_alignment"
	ScoreHipFlexion        = "hip_flexion"
	ScorePelvicTilt        = "pelvic_tilt"
)

// Canonical measurement keys.
const (
	MeasureKneeAngle           = "knee_angle"
	MeasureDepthRatio          = "depth_ratio"
	MeasureShoulderMidfootDiff = "shoulder_midfoot_diff"
)

// Body region keys used in AnalyzedFrame.Status.
const (
	RegionSpine = "spine"
	RegionLegs  = "legs"
)

// Status values. Anything other than good/warn is treated as an alert.
const (
	StatusGood = "good"
	StatusWarn = "warn"
	StatusBad  = "bad"
)

// Landmark is a single body keypoint. X and Y are normalized to [0,1] unless
// the upstream analyzer reported pixel space, which the overlay normalizer
// detects and converts. Z is unused by rendering.
type Landmark struct {
	X          float64 `json:"x" msgpack:"x"`
	Y          float64 `json:"y" msgpack:"y"`
	Z          float64 `json:"z,omitempty" msgpack:"z"`
	Visibility float64 `json:"visibility" msgpack:"visibility"`
}

// Valid reports whether the landmark has finite coordinates.
func (l Landmark) Valid() bool {
	return isFinite(l.X) && isFinite(l.Y)
}

// Point is a 2D position in normalized coordinates.
type Point struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// Arrow is a coaching annotation anchored to normalized coordinates.
type Arrow struct {
	Start   Point  `json:"start" msgpack:"start"`
	End     Point  `json:"end" msgpack:"end"`
	Color   string `json:"color" msgpack:"color"`
	Message string `json:"message" msgpack:"message"`
}

// AnalyzedFrame is one timestamped sample from the analysis collaborator.
//
// Invariant: frames in a Document are ordered by Index, and timestamps are
// non-decreasing across increasing index. The analysis decoder enforces this
// at the boundary so the frame index can binary-search without re-sorting.
type AnalyzedFrame struct {
	Index        int                `json:"index" msgpack:"index"`
	Timestamp    float64            `json:"timestamp" msgpack:"timestamp"`
	Landmarks    []Landmark         `json:"landmarks" msgpack:"landmarks"`
	Measurements map[string]float64 `json:"measurements,omitempty" msgpack:"measurements"`
	Scores       map[string]float64 `json:"scores,omitempty" msgpack:"scores"`
	Status       map[string]string  `json:"status,omitempty" msgpack:"status"`
	Arrows       []Arrow            `json:"arrows,omitempty" msgpack:"arrows"`
}

// RegionStatus returns the qualitative status for a body region,
// defaulting to good when the analyzer reported nothing for it.
func (f *AnalyzedFrame) RegionStatus(region string) string {
	if f.Status == nil {
		return StatusGood
	}
	if s, ok := f.Status[region]; ok && s != "" {
		return s
	}
	return StatusGood
}

// Document is the analysis result consumed by the rendering pipeline.
// A missing or empty Frames list means "no overlay data", not an error.
type Document struct {
	Source     string          `json:"source,omitempty" msgpack:"source"`
	FPS        int             `json:"fps,omitempty" msgpack:"fps"`
	FrameCount int             `json:"frame_count,omitempty" msgpack:"frame_count"`
	Frames     []AnalyzedFrame `json:"frames" msgpack:"frames"`
}

// Empty reports whether the document carries no analyzed frames.
func (d *Document) Empty() bool {
	return d == nil || len(d.Frames) == 0
}

// LastTimestamp returns the timestamp of the final analyzed frame,
// or 0 for an empty document.
func (d *Document) LastTimestamp() float64 {
	if d.Empty() {
		return 0
	}
	return d.Frames[len(d.Frames)-1].Timestamp
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
