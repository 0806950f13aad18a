package types

// Orientation classifies recorded media geometry. Portrait media is reported
// with landscape pixel dimensions plus rotation metadata by most mobile
// encoders, so the overlay applies a coordinate rotation when drawing.
type Orientation string

const (
	OrientationPortrait        Orientation = "portrait"
	OrientationLandscape       Orientation = "landscape"
	OrientationLandscapeMobile Orientation = "landscape-mobile"
)

// DetectOrientation classifies media by its native pixel dimensions.
// Wide mobile recordings (aspect ratio above 1.7) get their own class so the
// renderer can pick panel anchoring suited to the narrower vertical space.
func DetectOrientation(width, height int) Orientation {
	if height > width {
		return OrientationPortrait
	}
	if height > 0 && float64(width)/float64(height) > 1.7 {
		return OrientationLandscapeMobile
	}
	return OrientationLandscape
}

// IsPortrait reports whether the orientation requires coordinate rotation.
func (o Orientation) IsPortrait() bool {
	return o == OrientationPortrait
}

// PlaybackState is the ephemeral per-session state owned by the playback
// driver. It has no concurrent writers: the driver goroutine is the only
// mutator, and snapshots are handed out by value.
type PlaybackState struct {
	CurrentTime  float64
	IsPlaying    bool
	IsSeeking    bool
	Duration     float64
	Orientation  Orientation
	NativeWidth  int
	NativeHeight int
}
