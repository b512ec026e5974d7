package imaging_test

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"pixora/internal/imaging"
	"pixora/internal/services"
)

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestParseDataURLHints(t *testing.T) {
	cases := []struct {
		header string
		want   imaging.Format
	}{
		{"data:image/jpeg;base64", imaging.FormatJPEG},
		{"data:image/jpg;base64", imaging.FormatJPEG},
		{"data:image/png;base64", imaging.FormatPNG},
		{"data:image/webp;base64", imaging.FormatWebP},
		{"data:image/gif;base64", imaging.FormatJPEG},
		{"data:;base64", imaging.FormatJPEG},
	}
	for _, tc := range cases {
		blob, err := imaging.ParseDataURL(tc.header + ",AAEC")
		if err != nil {
			t.Fatalf("%s: ParseDataURL: %v", tc.header, err)
		}
		if blob.Hint != tc.want {
			t.Fatalf("%s: hint %s, want %s", tc.header, blob.Hint, tc.want)
		}
		if !bytes.Equal(blob.Data, []byte{0, 1, 2}) {
			t.Fatalf("%s: unexpected payload %v", tc.header, blob.Data)
		}
	}
}

func TestParseDataURLRejectsMalformed(t *testing.T) {
	for _, input := range []string{"data:image/png;base64", "data:image/png;base64,@@@"} {
		if _, err := imaging.ParseDataURL(input); !errors.Is(err, services.ErrDecode) {
			t.Fatalf("%q: expected decode error, got %v", input, err)
		}
	}
}

func TestFormatDataURLRoundTrip(t *testing.T) {
	url := imaging.FormatDataURL([]byte("pixels"), imaging.FormatWebP)
	if !strings.HasPrefix(url, "data:image/webp;base64,") {
		t.Fatalf("unexpected prefix: %s", url)
	}
	blob, err := imaging.ParseDataURL(url)
	if err != nil {
		t.Fatalf("ParseDataURL: %v", err)
	}
	if string(blob.Data) != "pixels" || blob.Hint != imaging.FormatWebP {
		t.Fatalf("unexpected round trip: %+v", blob)
	}
}

func TestDecodeSniffsContainerOverHint(t *testing.T) {
	data := encodePNG(t, solidImage(4, 3, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))
	r, name, err := imaging.Decode(data, imaging.FormatJPEG)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if name != "png" {
		t.Fatalf("expected sniffed png, got %q", name)
	}
	if r.Width() != 4 || r.Height() != 3 {
		t.Fatalf("unexpected dims %dx%d", r.Width(), r.Height())
	}
	if r.Layout != imaging.LayoutRGB {
		t.Fatalf("expected opaque image to decode as RGB, got %s", r.Layout)
	}
}

func TestDecodeDetectsAlphaLayout(t *testing.T) {
	img := solidImage(2, 2, color.NRGBA{R: 200, A: 255})
	img.SetNRGBA(1, 1, color.NRGBA{R: 200, A: 0})
	r, _, err := imaging.Decode(encodePNG(t, img), imaging.FormatPNG)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if r.Layout != imaging.LayoutRGBA {
		t.Fatalf("expected RGBA layout, got %s", r.Layout)
	}
}

func TestDecodeFailures(t *testing.T) {
	if _, _, err := imaging.Decode(nil, imaging.FormatPNG); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error for empty input, got %v", err)
	}
	if _, _, err := imaging.Decode([]byte("definitely not an image"), imaging.FormatPNG); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error for garbage, got %v", err)
	}
}

func TestEncodeJPEGRejectsAlpha(t *testing.T) {
	r := imaging.FromImage(solidImage(2, 2, color.NRGBA{A: 128}))
	if _, err := imaging.Encode(r, imaging.FormatJPEG, 90); !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected encode error, got %v", err)
	}
}

func TestEncodeJPEGClampsQuality(t *testing.T) {
	r := imaging.FromImage(solidImage(8, 8, color.NRGBA{R: 90, G: 120, B: 200, A: 255}))
	for _, q := range []int{-5, 0, 1, 100, 400} {
		data, err := imaging.Encode(r, imaging.FormatJPEG, q)
		if err != nil {
			t.Fatalf("quality %d: %v", q, err)
		}
		if _, name, err := imaging.Decode(data, imaging.FormatPNG); err != nil || name != "jpeg" {
			t.Fatalf("quality %d: decode back name=%q err=%v", q, name, err)
		}
	}
	if imaging.ClampQuality(0) != 1 || imaging.ClampQuality(101) != 100 || imaging.ClampQuality(50) != 50 {
		t.Fatal("unexpected clamp results")
	}
}

func TestEncodeLosslessFormatsPreservePixels(t *testing.T) {
	src := solidImage(3, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	src.SetNRGBA(2, 1, color.NRGBA{R: 250, G: 128, B: 7, A: 255})
	r := imaging.FromImage(src)
	for _, format := range []imaging.Format{imaging.FormatPNG, imaging.FormatWebP} {
		data, err := imaging.Encode(r, format, 1)
		if err != nil {
			t.Fatalf("%s: Encode: %v", format, err)
		}
		back, name, err := imaging.Decode(data, format)
		if err != nil {
			t.Fatalf("%s: Decode: %v", format, err)
		}
		if name != string(format) {
			t.Fatalf("%s: sniffed %q", format, name)
		}
		if !bytes.Equal(back.Pixels.Pix, r.Pixels.Pix) {
			t.Fatalf("%s: pixels changed after lossless round trip", format)
		}
	}
}

func TestWebPKeepsColourUnderTransparency(t *testing.T) {
	src := solidImage(4, 4, color.NRGBA{R: 200, G: 10, B: 60, A: 255})
	src.SetNRGBA(0, 0, color.NRGBA{R: 91, G: 17, B: 230, A: 0})
	src.SetNRGBA(3, 2, color.NRGBA{R: 12, G: 240, B: 5, A: 128})
	r := imaging.FromImage(src)
	if r.Layout != imaging.LayoutRGBA {
		t.Fatalf("layout = %s, want rgba", r.Layout)
	}

	data, err := imaging.Encode(r, imaging.FormatWebP, 80)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, name, err := imaging.Decode(data, imaging.FormatJPEG)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if name != "webp" {
		t.Fatalf("sniffed %q, want webp", name)
	}
	if !bytes.Equal(back.Pixels.Pix, r.Pixels.Pix) {
		t.Fatalf("pixels changed: got %v want %v", back.Pixels.Pix[:8], r.Pixels.Pix[:8])
	}
}

func TestDecodeCorruptWebP(t *testing.T) {
	if _, _, err := imaging.Decode([]byte("RIFF\x04\x00\x00\x00WEBPjunk"), imaging.FormatWebP); !errors.Is(err, services.ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	r := imaging.FromImage(solidImage(1, 1, color.NRGBA{A: 255}))
	if _, err := imaging.Encode(r, imaging.Format("bmp"), 80); !errors.Is(err, services.ErrEncode) {
		t.Fatalf("expected encode error, got %v", err)
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := imaging.ParseFormat(" JPG "); err != nil || f != imaging.FormatJPEG {
		t.Fatalf("unexpected %v %v", f, err)
	}
	if _, err := imaging.ParseFormat("gif"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if imaging.FormatJPEG.Extension() != "jpg" || imaging.FormatWebP.Extension() != "webp" {
		t.Fatal("unexpected extensions")
	}
}

func TestInspectAndCompress(t *testing.T) {
	data := encodePNG(t, solidImage(20, 10, color.NRGBA{R: 30, G: 60, B: 90, A: 255}))

	info, err := imaging.Inspect(imaging.Blob{Data: data, Hint: imaging.FormatJPEG, Header: "data:application/octet-stream;base64"})
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Width != 20 || info.Height != 10 || info.SizeBytes != len(data) || info.Format != "Unknown" {
		t.Fatalf("unexpected info %+v", info)
	}

	blob := imaging.NewBlob(data, imaging.FormatPNG)
	res, err := imaging.CompressBlob(blob, imaging.CompressOptions{Quality: 60, Format: "jpeg"})
	if err != nil {
		t.Fatalf("CompressBlob: %v", err)
	}
	if res.OriginalSize != len(data) || res.SizeBytes <= 0 {
		t.Fatalf("unexpected sizes %+v", res)
	}
	want := float64(res.OriginalSize-res.SizeBytes) / float64(res.OriginalSize) * 100
	if res.SavedPercent != want {
		t.Fatalf("saved percent %v, want %v", res.SavedPercent, want)
	}
	if !strings.HasPrefix(res.DataURL, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data url prefix")
	}
}
