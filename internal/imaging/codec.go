package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/gen2brain/webp"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	xwebp "golang.org/x/image/webp"

	"pixora/internal/services"
)

// Decode reads an encoded container into a Raster. The container is sniffed
// from its magic bytes; hint is only used when no registered decoder claims
// the data. The returned name is the container that was actually decoded.
func Decode(data []byte, hint Format) (*Raster, string, error) {
	if len(data) == 0 {
		return nil, "", services.Wrap(services.ErrDecode, "imaging", "decode", "empty input", nil)
	}
	// Two packages register "webp" with the image package, so webp never goes
	// through image.Decode.
	if isWebP(data) {
		img, err := decodeWebP(data)
		if err != nil {
			return nil, "", services.Wrap(services.ErrDecode, "imaging", "decode", "webp", err)
		}
		return FromImage(img), string(FormatWebP), nil
	}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return FromImage(img), name, nil
	}
	if !errors.Is(err, image.ErrFormat) {
		return nil, "", services.Wrap(services.ErrDecode, "imaging", "decode", name, err)
	}

	img, err = decodeAs(data, hint)
	if err != nil {
		return nil, "", services.Wrap(services.ErrDecode, "imaging", "decode", fmt.Sprintf("unrecognized container (hint %s)", hint), err)
	}
	return FromImage(img), string(hint), nil
}

func decodeAs(data []byte, format Format) (image.Image, error) {
	r := bytes.NewReader(data)
	switch format {
	case FormatPNG:
		return png.Decode(r)
	case FormatWebP:
		return decodeWebP(data)
	default:
		return jpeg.Decode(r)
	}
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// decodeWebP keeps lossless pixels exact: x/image/webp decodes VP8L straight
// to NRGBA, while the libwebp decoder always returns subsampled YCbCr. The
// libwebp decoder only handles containers x/image/webp rejects, such as
// animations.
func decodeWebP(data []byte) (image.Image, error) {
	img, err := xwebp.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}
	if fallback, fbErr := webp.Decode(bytes.NewReader(data)); fbErr == nil {
		return fallback, nil
	}
	return nil, err
}

// Encode writes a Raster in the requested container. Quality applies to jpeg
// only and is clamped to [1, 100]; png and webp are lossless and keep the RGB
// values of fully transparent pixels.
func Encode(r *Raster, format Format, quality int) ([]byte, error) {
	if r == nil || r.Pixels == nil {
		return nil, services.Wrap(services.ErrEncode, "imaging", "encode", "empty raster", nil)
	}
	var buf bytes.Buffer
	switch format {
	case FormatJPEG:
		if r.Layout == LayoutRGBA {
			return nil, services.Wrap(services.ErrEncode, "imaging", "encode jpeg", "jpeg cannot store an alpha channel", nil)
		}
		if err := jpeg.Encode(&buf, r.Pixels, &jpeg.Options{Quality: ClampQuality(quality)}); err != nil {
			return nil, services.Wrap(services.ErrEncode, "imaging", "encode jpeg", "", err)
		}
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&buf, r.Pixels); err != nil {
			return nil, services.Wrap(services.ErrEncode, "imaging", "encode png", "", err)
		}
	case FormatWebP:
		if err := webp.Encode(&buf, r.Pixels, webp.Options{Lossless: true, Exact: true}); err != nil {
			return nil, services.Wrap(services.ErrEncode, "imaging", "encode webp", "", err)
		}
	default:
		return nil, services.Wrap(services.ErrEncode, "imaging", "encode", fmt.Sprintf("unsupported format %q", format), nil)
	}
	return buf.Bytes(), nil
}

// ClampQuality bounds a jpeg quality value to [1, 100].
func ClampQuality(q int) int {
	switch {
	case q < 1:
		return 1
	case q > 100:
		return 100
	default:
		return q
	}
}
