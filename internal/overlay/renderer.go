package overlay

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"

	"github.com/formlab/squatview/internal/frameindex"
	"github.com/formlab/squatview/internal/score"
	"github.com/formlab/squatview/internal/types"
)

// Minimum landmark confidence for a segment endpoint to be drawn.
const minVisibility = 0.5

// Transformed points landing within this fraction of the surface edge are
// treated as unreliable out-of-frame detections and their segments skipped.
const edgeMargin = 0.01

// segment connects two landmark indices.
type segment struct {
	a, b int
}

// Skeleton topology, fixed at the 33-point format. Torso and legs take the
// frame's per-region status color; arms stay neutral.
var (
	torsoSegments = []segment{
		{types.LeftShoulder, types.RightShoulder},
		{types.LeftShoulder, types.LeftHip},
		{types.RightShoulder, types.RightHip},
		{types.LeftHip, types.RightHip},
	}
	legSegments = []segment{
		{types.LeftHip, types.LeftKnee},
		{types.LeftKnee, types.LeftAnkle},
		{types.RightHip, types.RightKnee},
		{types.RightKnee, types.RightAnkle},
		{types.LeftAnkle, types.LeftFootIndex},
		{types.RightAnkle, types.RightFootIndex},
	}
	armSegments = []segment{
		{types.LeftShoulder, types.LeftElbow},
		{types.LeftElbow, types.LeftWrist},
		{types.RightShoulder, types.RightElbow},
		{types.RightElbow, types.RightWrist},
	}
)

// Renderer draws one analysis document onto a surface, keyed to playback
// time. It is bound to the document for its lifetime: frame-index memoization
// and the session score summary die with it, so a new document must get a new
// Renderer.
type Renderer struct {
	doc      *types.Document
	idx      *frameindex.Index
	summary  score.Summary
	portrait bool
}

// NewRenderer builds a renderer for an analysis document. duration is the
// media duration in seconds, orientation the classification detected from the
// media's native dimensions.
func NewRenderer(doc *types.Document, duration float64, orientation types.Orientation) *Renderer {
	r := &Renderer{
		doc:      doc,
		idx:      frameindex.New(doc, duration),
		portrait: orientation.IsPortrait(),
	}
	if doc != nil {
		r.summary = score.Merge(doc.Frames)
	} else {
		r.summary = score.Merge(nil)
	}
	return r
}

// Draw clears the surface and renders the overlay for queryTime. It is
// idempotent and has no side effects beyond mutating the surface. An empty
// document leaves the surface cleared only. Failures in individual elements
// are logged and skipped; they never abort the rest of the pass.
func (r *Renderer) Draw(s Surface, queryTime float64) {
	w, h := s.Size()
	if w <= 0 || h <= 0 {
		return
	}

	s.Clear()

	if r.doc.Empty() {
		return
	}

	idx := r.idx.Find(queryTime)
	cur := &r.doc.Frames[idx]
	var next *types.AnalyzedFrame
	if idx+1 < len(r.doc.Frames) {
		next = &r.doc.Frames[idx+1]
	}
	landmarks := BlendFrames(cur, next, queryTime)

	r.drawElement(s, "skeleton", func() {
		r.drawSkeleton(s, landmarks, cur)
	})
	for i := range cur.Arrows {
		arrow := &cur.Arrows[i]
		r.drawElement(s, "arrow", func() {
			r.drawArrow(s, arrow)
		})
	}
	r.drawElement(s, "panel", func() {
		r.drawScorePanel(s)
	})
	r.drawElement(s, "indicator", func() {
		r.drawFrameIndicator(s, cur)
	})
}

// drawElement runs one drawing sub-pass, containing any panic so a malformed
// element is skipped rather than aborting the whole draw.
func (r *Renderer) drawElement(s Surface, name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Debug("overlay element skipped", "element", name, "reason", rec)
		}
	}()
	fn()
}

func (r *Renderer) drawSkeleton(s Surface, landmarks []types.Landmark, frame *types.AnalyzedFrame) {
	spineColor := statusColor(frame.RegionStatus(types.RegionSpine))
	legColor := statusColor(frame.RegionStatus(types.RegionLegs))

	r.drawSegments(s, landmarks, torsoSegments, spineColor)
	r.drawSegments(s, landmarks, legSegments, legColor)
	r.drawSegments(s, landmarks, armSegments, colorNeutral)
}

func (r *Renderer) drawSegments(s Surface, landmarks []types.Landmark, segs []segment, c color.RGBA) {
	w, h := s.Size()
	stroke := strokeWidth(h)

	for _, seg := range segs {
		ax, ay, ok := r.endpoint(landmarks, seg.a, w, h)
		if !ok {
			continue
		}
		bx, by, ok := r.endpoint(landmarks, seg.b, w, h)
		if !ok {
			continue
		}
		s.Line(ax, ay, bx, by, c, stroke)
	}
}

// endpoint resolves one segment endpoint to pixel coordinates, applying the
// per-segment skip rules: index in range, finite coordinates, confident
// detection, and not hugging the surface edge.
func (r *Renderer) endpoint(landmarks []types.Landmark, idx, w, h int) (float64, float64, bool) {
	if idx < 0 || idx >= len(landmarks) {
		return 0, 0, false
	}
	lm := landmarks[idx]
	if !lm.Valid() || lm.Visibility < minVisibility {
		return 0, 0, false
	}

	nx, ny := Normalize(lm.X, lm.Y, float64(w), float64(h), r.portrait)
	if nx < edgeMargin || nx > 1-edgeMargin || ny < edgeMargin || ny > 1-edgeMargin {
		return 0, 0, false
	}
	return nx * float64(w), ny * float64(h), true
}

func (r *Renderer) drawArrow(s Surface, arrow *types.Arrow) {
	w, h := s.Size()
	sx, sy := Normalize(arrow.Start.X, arrow.Start.Y, float64(w), float64(h), r.portrait)
	ex, ey := Normalize(arrow.End.X, arrow.End.Y, float64(w), float64(h), r.portrait)

	x1, y1 := sx*float64(w), sy*float64(h)
	x2, y2 := ex*float64(w), ey*float64(h)

	c := arrowColor(arrow.Color)
	stroke := strokeWidth(h) * 0.75
	s.Line(x1, y1, x2, y2, c, stroke)

	// Arrowhead: two short strokes back from the tip.
	angle := math.Atan2(y2-y1, x2-x1)
	headLen := math.Max(8, float64(h)*0.015)
	for _, spread := range []float64{math.Pi - 0.5, math.Pi + 0.5} {
		hx := x2 + headLen*math.Cos(angle+spread)
		hy := y2 + headLen*math.Sin(angle+spread)
		s.Line(x2, y2, hx, hy, c, stroke)
	}

	if arrow.Message != "" {
		s.Text(x2+6, y2-6, arrow.Message, c)
	}
}

// Panel geometry is anchored to a fixed screen region and does not scale
// with the surface.
const (
	panelX     = 16.0
	panelY     = 16.0
	panelWidth = 200.0
	panelRowH  = 16.0
	panelPad   = 8.0
)

func (r *Renderer) drawScorePanel(s Surface) {
	rows := []struct {
		label string
		value float64
	}{
		{"Total", r.summary.Total},
		{"Knee depth", r.summary.KneeDepth},
		{"Shoulder align", r.summary.ShoulderAlignment},
		{"Hip flexion", r.summary.HipFlexion},
		{"Pelvic tilt", r.summary.PelvicTilt},
	}

	height := panelPad*2 + panelRowH*float64(len(rows))
	s.FillRect(panelX, panelY, panelWidth, height, colorPanelBG)

	y := panelY + panelPad + 12
	for _, row := range rows {
		s.Text(panelX+panelPad, y, row.label, colorPanelText)
		s.Text(panelX+panelWidth-panelPad-4*7, y, formatScore(row.value), tierColor(row.value))
		y += panelRowH
	}
}

func (r *Renderer) drawFrameIndicator(s Surface, frame *types.AnalyzedFrame) {
	_, h := s.Size()
	label := fmt.Sprintf("frame %d @ %.2fs", frame.Index, frame.Timestamp)
	s.Text(8, float64(h)-8, label, colorPanelText)
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}
	return fmt.Sprintf("%.0f", v)
}

func strokeWidth(surfaceHeight int) float64 {
	return math.Max(3, float64(surfaceHeight)*0.006)
}
