package overlay

import "github.com/formlab/squatview/internal/types"

// BlendFrames produces the landmark set for queryTime by linearly
// interpolating between the matched frame and its successor. Analyzed frames
// are sampled sparsely relative to playback frame rate; blending removes the
// visible popping of joints between samples.
//
// Interpolation is skipped (the matched frame's landmarks are returned as-is)
// when there is no successor or the two frames disagree on landmark count.
func BlendFrames(cur, next *types.AnalyzedFrame, queryTime float64) []types.Landmark {
	if cur == nil {
		return nil
	}
	if next == nil || len(next.Landmarks) != len(cur.Landmarks) {
		return cur.Landmarks
	}

	span := next.Timestamp - cur.Timestamp
	if span <= 0 {
		return cur.Landmarks
	}

	ratio := (queryTime - cur.Timestamp) / span
	if ratio <= 0 {
		return cur.Landmarks
	}
	if ratio >= 1 {
		return next.Landmarks
	}
	return Blend(cur.Landmarks, next.Landmarks, ratio)
}

// Blend linearly interpolates x, y, and visibility per landmark index:
// blended = a + (b - a) * ratio. The caller guarantees equal lengths.
func Blend(a, b []types.Landmark, ratio float64) []types.Landmark {
	out := make([]types.Landmark, len(a))
	for i := range a {
		out[i] = types.Landmark{
			X:          lerp(a[i].X, b[i].X, ratio),
			Y:          lerp(a[i].Y, b[i].Y, ratio),
			Z:          a[i].Z,
			Visibility: lerp(a[i].Visibility, b[i].Visibility, ratio),
		}
	}
	return out
}

func lerp(a, b, ratio float64) float64 {
	return a + (b-a)*ratio
}
