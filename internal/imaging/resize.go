package imaging

import (
	"fmt"
	"math"

	resample "github.com/disintegration/imaging"

	"pixora/internal/services"
)

// fitThreshold keeps FitWithin from resampling images that already fit up to
// rounding noise.
const fitThreshold = 0.9999

// Target is a requested output size. A zero dimension means "not given".
type Target struct {
	Width  int
	Height int
}

// ScaledSize computes the output dimensions for a resize of a w x h image.
// The boolean is false when the target names neither dimension.
func ScaledSize(w, h int, target Target, keepAspect bool) (int, int, bool) {
	fw, fh := float64(w), float64(h)
	var outW, outH int
	switch {
	case target.Width > 0 && target.Height > 0:
		if !keepAspect {
			return target.Width, target.Height, true
		}
		s := math.Min(float64(target.Width)/fw, float64(target.Height)/fh)
		outW, outH = int(math.Floor(fw*s)), int(math.Floor(fh*s))
	case target.Width > 0:
		outW = target.Width
		outH = int(math.Floor(fh * float64(target.Width) / fw))
	case target.Height > 0:
		outW = int(math.Floor(fw * float64(target.Height) / fh))
		outH = target.Height
	default:
		return w, h, false
	}
	return max(outW, 1), max(outH, 1), true
}

// Resize scales r to the target using a Lanczos filter with three lobes.
// When the target names no dimension r itself is returned.
func Resize(r *Raster, target Target, keepAspect bool) (*Raster, error) {
	if target.Width < 0 || target.Height < 0 {
		return nil, services.Wrap(services.ErrValidation, "imaging", "resize", fmt.Sprintf("negative target %dx%d", target.Width, target.Height), nil)
	}
	w, h, ok := ScaledSize(r.Width(), r.Height(), target, keepAspect)
	if !ok {
		return r, nil
	}
	return resampleTo(r, w, h, resample.Lanczos), nil
}

// FitWithin shrinks r so that it fits inside maxW x maxH, keeping its aspect
// ratio. Images that already fit, or fit within rounding, are returned as is.
// A non-positive bound disables that axis.
func FitWithin(r *Raster, maxW, maxH int) *Raster {
	w, h := r.Width(), r.Height()
	if w == 0 || h == 0 {
		return r
	}
	s := math.Inf(1)
	if maxW > 0 {
		s = float64(maxW) / float64(w)
	}
	if maxH > 0 {
		s = math.Min(s, float64(maxH)/float64(h))
	}
	if s >= fitThreshold {
		return r
	}
	outW := max(int(math.Floor(float64(w)*s)), 1)
	outH := max(int(math.Floor(float64(h)*s)), 1)
	return resampleTo(r, outW, outH, resample.Lanczos)
}

// ResampleLinear resizes r exactly to w x h with a triangle filter.
func ResampleLinear(r *Raster, w, h int) *Raster {
	return resampleTo(r, w, h, resample.Linear)
}

func resampleTo(r *Raster, w, h int, filter resample.ResampleFilter) *Raster {
	if w == r.Width() && h == r.Height() {
		return &Raster{Pixels: resample.Clone(r.Pixels), Layout: r.Layout}
	}
	return &Raster{Pixels: resample.Resize(r.Pixels, w, h, filter), Layout: r.Layout}
}
