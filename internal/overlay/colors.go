package overlay

import (
	"image/color"
	"math"

	"github.com/formlab/squatview/internal/types"
)

// Skeleton stroke colors.
var (
	colorGood    = color.RGBA{R: 0x22, G: 0xc5, B: 0x5e, A: 0xff} // green
	colorWarn    = color.RGBA{R: 0xea, G: 0xb3, B: 0x08, A: 0xff} // yellow
	colorAlert   = color.RGBA{R: 0xef, G: 0x44, B: 0x44, A: 0xff} // red
	colorNeutral = color.RGBA{R: 0x94, G: 0xa3, B: 0xb8, A: 0xff} // slate, arms
)

// Panel colors.
var (
	colorPanelBG   = color.RGBA{A: 0xb4} // translucent black
	colorPanelText = color.RGBA{R: 0xf8, G: 0xfa, B: 0xfc, A: 0xff}

	colorTierBest   = color.RGBA{R: 0x4a, G: 0xde, B: 0x80, A: 0xff}
	colorTierSecond = color.RGBA{R: 0xa3, G: 0xe6, B: 0x35, A: 0xff}
	colorTierThird  = color.RGBA{R: 0xfb, G: 0x92, B: 0x3c, A: 0xff}
	colorTierWorst  = color.RGBA{R: 0xf8, G: 0x71, B: 0x71, A: 0xff}
	colorTierNone   = color.RGBA{R: 0x9c, G: 0xa3, B: 0xaf, A: 0xff}
)

// Named arrow colors accepted from the analyzer; anything unknown falls back
// to the alert color.
var arrowColors = map[string]color.RGBA{
	"red":    colorAlert,
	"yellow": colorWarn,
	"green":  colorGood,
	"white":  {R: 0xff, G: 0xff, B: 0xff, A: 0xff},
}

// statusColor maps a qualitative region status to a stroke color.
// good -> green, warn -> yellow, anything else is an alert.
func statusColor(status string) color.RGBA {
	switch status {
	case types.StatusGood:
		return colorGood
	case types.StatusWarn:
		return colorWarn
	default:
		return colorAlert
	}
}

// tierColor maps a score value onto its display tier.
func tierColor(v float64) color.RGBA {
	if math.IsNaN(v) {
		return colorTierNone
	}
	switch {
	case v >= 100:
		return colorTierBest
	case v >= 75:
		return colorTierSecond
	case v >= 25:
		return colorTierThird
	default:
		return colorTierWorst
	}
}

func arrowColor(name string) color.RGBA {
	if c, ok := arrowColors[name]; ok {
		return c
	}
	return colorAlert
}
