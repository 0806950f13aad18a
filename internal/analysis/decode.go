// Package analysis obtains pose-analysis documents for recorded videos:
// from the remote analyzer over HTTP, or from a local synthetic generator
// when the remote is unavailable.
package analysis

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/formlab/squatview/internal/types"
)

// The upstream service has shipped several field spellings over time:
// keypoints vs landmarks, score vs visibility, camelCase vs snake_case
// metric names. All of it is folded onto one canonical shape here, at the
// boundary, so nothing downstream ever alias-patches a frame.

type wireDocument struct {
	Success    bool        `json:"success"`
	FPS        int         `json:"fps"`
	FrameCount int         `json:"frame_count"`
	Frames     []wireFrame `json:"frames"`
}

type wireFrame struct {
	Frame        *int               `json:"frame"`
	Index        *int               `json:"index"`
	Timestamp    float64            `json:"timestamp"`
	Landmarks    []wireLandmark     `json:"landmarks"`
	Keypoints    []wireLandmark     `json:"keypoints"`
	Measurements map[string]float64 `json:"measurements"`
	Scores       map[string]float64 `json:"scores"`
	Status       map[string]string  `json:"status"`
	Arrows       []wireArrow        `json:"arrows"`
}

type wireLandmark struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          float64  `json:"z"`
	Visibility *float64 `json:"visibility"`
	Score      *float64 `json:"score"`
}

type wireArrow struct {
	Start   types.Point `json:"start"`
	End     types.Point `json:"end"`
	Color   string      `json:"color"`
	Message string      `json:"message"`
}

// keyAliases maps upstream metric spellings that snake-casing alone cannot
// recover onto canonical keys.
var keyAliases = map[string]string{
	"shoulderAlign":  types.ScoreShoulderAlignment,
	"shoulder_align": types.ScoreShoulderAlignment,
}

// Decode parses an analysis document from JSON and canonicalizes it. A
// missing or empty frames list decodes to an empty document; that is valid
// "no overlay data", never an error.
func Decode(r io.Reader) (*types.Document, error) {
	var w wireDocument
	if err := json.NewDecoder(r).Decode(&w); err != nil {
		return nil, fmt.Errorf("failed to decode analysis document: %w", err)
	}

	doc := &types.Document{
		FPS:        w.FPS,
		FrameCount: w.FrameCount,
		Frames:     make([]types.AnalyzedFrame, 0, len(w.Frames)),
	}
	for i := range w.Frames {
		doc.Frames = append(doc.Frames, w.Frames[i].canonical())
	}

	// Frames must be sortable by timestamp without reordering indexes,
	// so sort once here and assign a dense 0-based index sequence.
	sort.SliceStable(doc.Frames, func(i, j int) bool {
		return doc.Frames[i].Timestamp < doc.Frames[j].Timestamp
	})
	for i := range doc.Frames {
		doc.Frames[i].Index = i
	}
	return doc, nil
}

func (f *wireFrame) canonical() types.AnalyzedFrame {
	landmarks := f.Landmarks
	if len(landmarks) == 0 {
		landmarks = f.Keypoints
	}

	out := types.AnalyzedFrame{
		Timestamp: f.Timestamp,
		Landmarks: make([]types.Landmark, len(landmarks)),
	}

	for i, lm := range landmarks {
		vis := 0.0
		switch {
		case lm.Visibility != nil:
			vis = *lm.Visibility
		case lm.Score != nil:
			vis = *lm.Score
		}
		out.Landmarks[i] = types.Landmark{X: lm.X, Y: lm.Y, Z: lm.Z, Visibility: vis}
	}

	if len(f.Measurements) > 0 {
		out.Measurements = canonicalKeys(f.Measurements)
	}
	if len(f.Scores) > 0 {
		out.Scores = canonicalKeys(f.Scores)
	}
	if len(f.Status) > 0 {
		out.Status = make(map[string]string, len(f.Status))
		for k, v := range f.Status {
			out.Status[canonicalKey(k)] = strings.ToLower(v)
		}
	}
	if len(f.Arrows) > 0 {
		out.Arrows = make([]types.Arrow, len(f.Arrows))
		for i, a := range f.Arrows {
			out.Arrows[i] = types.Arrow{
				Start:   a.Start,
				End:     a.End,
				Color:   strings.ToLower(a.Color),
				Message: a.Message,
			}
		}
	}
	return out
}

func canonicalKeys(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[canonicalKey(k)] = v
	}
	return out
}

func canonicalKey(k string) string {
	if alias, ok := keyAliases[k]; ok {
		return alias
	}
	return snakeCase(k)
}

// snakeCase converts camelCase metric names to snake_case, leaving
// already-canonical keys untouched.
func snakeCase(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
