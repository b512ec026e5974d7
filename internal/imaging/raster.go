package imaging

import (
	"image"

	resample "github.com/disintegration/imaging"
)

// Layout describes which channels of a Raster are meaningful.
type Layout int

const (
	LayoutRGB Layout = iota
	LayoutRGBA
)

func (l Layout) String() string {
	if l == LayoutRGBA {
		return "rgba"
	}
	return "rgb"
}

// Raster is a decoded 8-bit image.
type Raster struct {
	Pixels *image.NRGBA
	Layout Layout
}

// FromImage converts any image into a Raster. The layout is RGBA only when at
// least one pixel is not fully opaque.
func FromImage(img image.Image) *Raster {
	pixels := resample.Clone(img)
	layout := LayoutRGB
	if !pixels.Opaque() {
		layout = LayoutRGBA
	}
	return &Raster{Pixels: pixels, Layout: layout}
}

// Width returns the raster width in pixels.
func (r *Raster) Width() int {
	if r == nil || r.Pixels == nil {
		return 0
	}
	return r.Pixels.Bounds().Dx()
}

// Height returns the raster height in pixels.
func (r *Raster) Height() int {
	if r == nil || r.Pixels == nil {
		return 0
	}
	return r.Pixels.Bounds().Dy()
}

// WithAlpha returns a copy of the raster that is marked RGBA.
func (r *Raster) WithAlpha() *Raster {
	return &Raster{Pixels: resample.Clone(r.Pixels), Layout: LayoutRGBA}
}
