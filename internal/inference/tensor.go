package inference

import (
	"fmt"

	"pixora/internal/imaging"
	"pixora/internal/services"
)

// Normalization constants the segmentation model was trained with.
const (
	pixelMean = 128.0
	pixelStd  = 256.0
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// newInputTensor builds a (1, 3, H, W) tensor from a square raster.
func newInputTensor(r *imaging.Raster) Tensor {
	w, h := r.Width(), r.Height()
	plane := w * h
	data := make([]float32, 3*plane)
	pix := r.Pixels.Pix
	stride := r.Pixels.Stride
	for y := 0; y < h; y++ {
		row := pix[y*stride:]
		for x := 0; x < w; x++ {
			i := y*w + x
			p := row[x*4:]
			data[i] = (float32(p[0]) - pixelMean) / pixelStd
			data[plane+i] = (float32(p[1]) - pixelMean) / pixelStd
			data[2*plane+i] = (float32(p[2]) - pixelMean) / pixelStd
		}
	}
	return Tensor{Shape: []int64{1, 3, int64(h), int64(w)}, Data: data}
}

// mask is a model output resolved to a single-channel H x W view.
type mask interface {
	at(x, y int) float32
	size() (int, int)
}

// rank3Mask is an output shaped (N, H, W); batch 0 is used.
type rank3Mask struct {
	data []float32
	w, h int
}

func (m rank3Mask) at(x, y int) float32 { return m.data[y*m.w+x] }
func (m rank3Mask) size() (int, int)    { return m.w, m.h }

// rank4Mask is an output shaped (N, C, H, W); batch 0, channel 0 is used.
type rank4Mask struct {
	data []float32
	w, h int
}

func (m rank4Mask) at(x, y int) float32 { return m.data[y*m.w+x] }
func (m rank4Mask) size() (int, int)    { return m.w, m.h }

// resolveMask classifies a session output once, by rank.
func resolveMask(out Tensor) (mask, error) {
	shape := out.Shape
	var w, h int
	switch len(shape) {
	case 3:
		h, w = int(shape[1]), int(shape[2])
	case 4:
		h, w = int(shape[2]), int(shape[3])
	default:
		return nil, services.Wrap(services.ErrInference, "inference", "read mask", fmt.Sprintf("unsupported output rank %d (shape %v)", len(shape), shape), nil)
	}
	if w <= 0 || h <= 0 || len(out.Data) < w*h {
		return nil, services.Wrap(services.ErrInference, "inference", "read mask", fmt.Sprintf("output shape %v does not match %d values", shape, len(out.Data)), nil)
	}
	if len(shape) == 3 {
		return rank3Mask{data: out.Data, w: w, h: h}, nil
	}
	return rank4Mask{data: out.Data, w: w, h: h}, nil
}

// applyMask writes the mask into the alpha channel of r, which must match the
// mask size.
func applyMask(r *imaging.Raster, m mask) error {
	mw, mh := m.size()
	if mw != r.Width() || mh != r.Height() {
		return services.Wrap(services.ErrInference, "inference", "apply mask", fmt.Sprintf("mask %dx%d does not match input %dx%d", mw, mh, r.Width(), r.Height()), nil)
	}
	pix := r.Pixels.Pix
	stride := r.Pixels.Stride
	for y := 0; y < mh; y++ {
		for x := 0; x < mw; x++ {
			pix[y*stride+x*4+3] = alphaFromMask(m.at(x, y))
		}
	}
	return nil
}

func alphaFromMask(v float32) uint8 {
	switch {
	case v <= 0 || v != v:
		return 0
	case v >= 1:
		return 255
	default:
		return uint8(v * 255)
	}
}
