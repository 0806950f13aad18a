package overlay

import (
	"image/color"
	"strings"
	"testing"

	"github.com/formlab/squatview/internal/types"
)

// fakeSurface records drawing operations for assertions.
type fakeSurface struct {
	width, height int
	clears        int
	lines         []fakeLine
	rects         int
	texts         []string
}

type fakeLine struct {
	x1, y1, x2, y2 float64
	c              color.Color
}

func newFakeSurface(w, h int) *fakeSurface { return &fakeSurface{width: w, height: h} }

func (f *fakeSurface) Size() (int, int) { return f.width, f.height }
func (f *fakeSurface) Resize(w, h int)  { f.width, f.height = w, h }
func (f *fakeSurface) Clear()           { f.clears++ }
func (f *fakeSurface) Line(x1, y1, x2, y2 float64, c color.Color, _ float64) {
	f.lines = append(f.lines, fakeLine{x1, y1, x2, y2, c})
}
func (f *fakeSurface) FillRect(_, _, _, _ float64, _ color.Color) { f.rects++ }
func (f *fakeSurface) Text(_, _ float64, s string, _ color.Color) { f.texts = append(f.texts, s) }

// fullBody returns 33 confidently-detected landmarks centered in frame.
func fullBody() []types.Landmark {
	lms := make([]types.Landmark, types.NumLandmarks)
	for i := range lms {
		lms[i] = types.Landmark{X: 0.4 + float64(i)*0.005, Y: 0.3 + float64(i)*0.01, Visibility: 0.9}
	}
	return lms
}

func singleFrameDoc(frame types.AnalyzedFrame) *types.Document {
	frame.Index = 0
	return &types.Document{Frames: []types.AnalyzedFrame{frame}}
}

func TestDraw_EmptyDocumentClearsOnly(t *testing.T) {
	r := NewRenderer(&types.Document{}, 10, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 3.0)

	if s.clears != 1 {
		t.Errorf("clears = %d, want 1", s.clears)
	}
	if len(s.lines) != 0 || s.rects != 0 || len(s.texts) != 0 {
		t.Errorf("empty document drew content: %d lines, %d rects, %d texts",
			len(s.lines), s.rects, len(s.texts))
	}
}

func TestDraw_SkeletonSegmentCount(t *testing.T) {
	doc := singleFrameDoc(types.AnalyzedFrame{Timestamp: 0, Landmarks: fullBody()})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 0)

	// 4 torso + 6 leg + 4 arm segments, all endpoints confident and in frame.
	if len(s.lines) != 14 {
		t.Errorf("drew %d segments, want 14", len(s.lines))
	}
}

func TestDraw_SkipsLowVisibilityEndpoints(t *testing.T) {
	lms := fullBody()
	lms[types.LeftKnee].Visibility = 0.2

	doc := singleFrameDoc(types.AnalyzedFrame{Timestamp: 0, Landmarks: lms})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 0)

	// Left hip-knee and knee-ankle segments vanish.
	if len(s.lines) != 12 {
		t.Errorf("drew %d segments, want 12 with a low-confidence knee", len(s.lines))
	}
}

func TestDraw_SkipsEdgeHuggingEndpoints(t *testing.T) {
	lms := fullBody()
	lms[types.LeftAnkle] = types.Landmark{X: 0.001, Y: 0.5, Visibility: 0.9}

	doc := singleFrameDoc(types.AnalyzedFrame{Timestamp: 0, Landmarks: lms})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 0)

	// Knee-ankle and ankle-foot segments on the left side vanish.
	if len(s.lines) != 12 {
		t.Errorf("drew %d segments, want 12 with an out-of-frame ankle", len(s.lines))
	}
}

func TestDraw_SkipsNonFiniteEndpoints(t *testing.T) {
	lms := fullBody()
	lms[types.LeftShoulder] = types.Landmark{X: nan(), Y: 0.5, Visibility: 0.9}

	doc := singleFrameDoc(types.AnalyzedFrame{Timestamp: 0, Landmarks: lms})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 0)

	// Shoulder-shoulder, shoulder-hip, and shoulder-elbow segments drop out;
	// the rest of the skeleton still draws.
	if len(s.lines) != 11 {
		t.Errorf("drew %d segments, want 11 with a malformed shoulder", len(s.lines))
	}
}

func TestDraw_StatusColorsPerRegion(t *testing.T) {
	doc := singleFrameDoc(types.AnalyzedFrame{
		Timestamp: 0,
		Landmarks: fullBody(),
		Status:    map[string]string{types.RegionSpine: "warn", types.RegionLegs: "collapsed"},
	})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 0)

	var warn, alert, neutral int
	for _, ln := range s.lines {
		switch ln.c {
		case color.Color(colorWarn):
			warn++
		case color.Color(colorAlert):
			alert++
		case color.Color(colorNeutral):
			neutral++
		}
	}
	if warn != 4 {
		t.Errorf("warn-colored segments = %d, want 4 (torso)", warn)
	}
	if alert != 6 {
		t.Errorf("alert-colored segments = %d, want 6 (legs, unknown status)", alert)
	}
	if neutral != 4 {
		t.Errorf("neutral segments = %d, want 4 (arms)", neutral)
	}
}

func TestDraw_ScorePanelAndIndicator(t *testing.T) {
	doc := singleFrameDoc(types.AnalyzedFrame{
		Timestamp: 1.25,
		Landmarks: fullBody(),
		Scores: map[string]float64{
			types.ScoreKneeDepth:         90,
			types.ScoreShoulderAlignment: 10,
			types.ScoreHipFlexion:        80,
			types.ScorePelvicTilt:        20,
		},
	})
	r := NewRenderer(doc, 2, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 1.25)

	if s.rects != 1 {
		t.Errorf("panel rects = %d, want 1", s.rects)
	}
	joined := strings.Join(s.texts, "|")
	if !strings.Contains(joined, "57") {
		t.Errorf("panel missing weighted total 57, texts: %q", s.texts)
	}
	if !strings.Contains(joined, "frame 0 @ 1.25s") {
		t.Errorf("missing frame indicator, texts: %q", s.texts)
	}
}

func TestDraw_MissingMetricsRenderNA(t *testing.T) {
	doc := singleFrameDoc(types.AnalyzedFrame{
		Timestamp: 0,
		Landmarks: fullBody(),
		Scores:    map[string]float64{types.ScoreKneeDepth: 90},
	})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 0)

	joined := strings.Join(s.texts, "|")
	if !strings.Contains(joined, "N/A") {
		t.Errorf("expected N/A for undefined total, texts: %q", s.texts)
	}
}

func TestDraw_ArrowsRendered(t *testing.T) {
	doc := singleFrameDoc(types.AnalyzedFrame{
		Timestamp: 0,
		Landmarks: fullBody(),
		Arrows: []types.Arrow{{
			Start:   types.Point{X: 0.5, Y: 0.5},
			End:     types.Point{X: 0.5, Y: 0.4},
			Color:   "yellow",
			Message: "Knees too bent",
		}},
	})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(1280, 720)

	r.Draw(s, 0)

	// 14 skeleton segments + shaft + 2 arrowhead strokes.
	if len(s.lines) != 17 {
		t.Errorf("drew %d lines, want 17 with one arrow", len(s.lines))
	}
	if !strings.Contains(strings.Join(s.texts, "|"), "Knees too bent") {
		t.Errorf("arrow message not drawn, texts: %q", s.texts)
	}
}

func TestDraw_InterpolatesBetweenFrames(t *testing.T) {
	a := fullBody()
	b := fullBody()
	for i := range b {
		b[i].X += 0.1
	}
	doc := &types.Document{Frames: []types.AnalyzedFrame{
		{Index: 0, Timestamp: 0, Landmarks: a},
		{Index: 1, Timestamp: 1, Landmarks: b},
	}}
	r := NewRenderer(doc, 1, types.OrientationLandscape)

	s := newFakeSurface(1000, 1000)
	r.Draw(s, 0.5)

	// First torso segment starts at the left shoulder, which should sit
	// halfway between the two samples: (0.4+11*0.005+0.05)*1000.
	wantX := (0.4 + 11*0.005 + 0.05) * 1000
	if len(s.lines) == 0 {
		t.Fatal("no segments drawn")
	}
	if diff := s.lines[0].x1 - wantX; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("interpolated shoulder x = %v, want %v", s.lines[0].x1, wantX)
	}
}

func TestDraw_ZeroSizedSurfaceNoOp(t *testing.T) {
	doc := singleFrameDoc(types.AnalyzedFrame{Timestamp: 0, Landmarks: fullBody()})
	r := NewRenderer(doc, 1, types.OrientationLandscape)
	s := newFakeSurface(0, 0)

	r.Draw(s, 0)

	if s.clears != 0 || len(s.lines) != 0 {
		t.Error("draw on zero-sized surface must be a no-op")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
