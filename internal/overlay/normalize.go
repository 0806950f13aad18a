// Package overlay renders skeletal landmarks, coaching arrows, and score
// panels onto a pixel surface, synchronized to playback time.
package overlay

import "math"

// Normalize maps a landmark coordinate into canonical [0,1]x[0,1] space.
//
// Coordinates may arrive either pre-normalized or in pixel space; if either
// axis exceeds 1 both are treated as pixels and divided by the surface size.
// Both axes are clamped independently afterwards to absorb upstream noise.
// Portrait media gets a fixed 90 degree rotation: (x', y') = (y, 1-x).
//
// Non-finite input returns the center point so one malformed landmark never
// aborts the draw of the remaining skeleton.
func Normalize(x, y, surfaceWidth, surfaceHeight float64, portrait bool) (float64, float64) {
	if !finite(x) || !finite(y) {
		return 0.5, 0.5
	}

	if x > 1 || y > 1 {
		if surfaceWidth > 0 {
			x /= surfaceWidth
		}
		if surfaceHeight > 0 {
			y /= surfaceHeight
		}
	}

	x = clamp01(x)
	y = clamp01(y)

	if portrait {
		x, y = y, 1-x
	}
	return x, y
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
