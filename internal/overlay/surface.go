package overlay

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Surface is a pixel-addressable 2D drawing target. Its dimensions must
// always equal the native resolution of the underlying media, not any
// displayed size; the playback driver resizes it when metadata loads.
type Surface interface {
	// Size returns the pixel dimensions.
	Size() (width, height int)
	// Resize resets the surface to new pixel dimensions, clearing it.
	Resize(width, height int)
	// Clear makes the whole surface fully transparent.
	Clear()
	// Line draws a stroked segment between two pixel positions.
	Line(x1, y1, x2, y2 float64, c color.Color, width float64)
	// FillRect fills an axis-aligned rectangle.
	FillRect(x, y, w, h float64, c color.Color)
	// Text draws a one-line string with its baseline at (x, y).
	Text(x, y float64, s string, c color.Color)
}

// ImageSurface rasterizes onto an in-memory RGBA image. It is the concrete
// surface used for headless replay rendering; tests substitute recording
// fakes behind the Surface interface.
type ImageSurface struct {
	img  *image.RGBA
	face font.Face
}

// NewImageSurface creates a transparent surface of the given size.
func NewImageSurface(width, height int) *ImageSurface {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return &ImageSurface{
		img:  image.NewRGBA(image.Rect(0, 0, width, height)),
		face: basicfont.Face7x13,
	}
}

// Image exposes the backing image for encoding.
func (s *ImageSurface) Image() *image.RGBA {
	return s.img
}

// Size implements Surface.
func (s *ImageSurface) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Resize implements Surface.
func (s *ImageSurface) Resize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

// Clear implements Surface.
func (s *ImageSurface) Clear() {
	for i := range s.img.Pix {
		s.img.Pix[i] = 0
	}
}

// Line implements Surface with an anti-aliased stroked quad.
func (s *ImageSurface) Line(x1, y1, x2, y2 float64, c color.Color, width float64) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}
	// Perpendicular half-width offset.
	px := -dy / length * width / 2
	py := dx / length * width / 2

	w, h := s.Size()
	r := vector.NewRasterizer(w, h)
	r.DrawOp = draw.Over
	r.MoveTo(float32(x1+px), float32(y1+py))
	r.LineTo(float32(x2+px), float32(y2+py))
	r.LineTo(float32(x2-px), float32(y2-py))
	r.LineTo(float32(x1-px), float32(y1-py))
	r.ClosePath()
	r.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{})
}

// FillRect implements Surface.
func (s *ImageSurface) FillRect(x, y, w, h float64, c color.Color) {
	rect := image.Rect(int(x), int(y), int(x+w), int(y+h)).Intersect(s.img.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(s.img, rect, image.NewUniform(c), image.Point{}, draw.Over)
}

// Text implements Surface.
func (s *ImageSurface) Text(x, y float64, str string, c color.Color) {
	d := font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(c),
		Face: s.face,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(str)
}
