package imaging

import (
	"fmt"
	"strings"

	"pixora/internal/services"
)

// Format is an output container.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ParseFormat normalizes a user supplied format name.
func ParseFormat(value string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	default:
		return "", services.Wrap(services.ErrValidation, "imaging", "parse format", fmt.Sprintf("unsupported format %q", value), nil)
	}
}

// Extension returns the file extension used for artifacts, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	default:
		return "jpg"
	}
}

// MIME returns the media type written into data URLs.
func (f Format) MIME() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// FormatFromExtension maps a file extension (with or without the dot) to a
// Format. Unknown extensions fall back to jpeg with ok=false.
func FormatFromExtension(ext string) (Format, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return FormatJPEG, true
	case "png":
		return FormatPNG, true
	case "webp":
		return FormatWebP, true
	default:
		return FormatJPEG, false
	}
}

// hintFromHeader picks a format from a data URL header by substring.
// Headers mentioning none of the known types default to jpeg.
func hintFromHeader(header string) Format {
	switch {
	case strings.Contains(header, "jpeg"), strings.Contains(header, "jpg"):
		return FormatJPEG
	case strings.Contains(header, "png"):
		return FormatPNG
	case strings.Contains(header, "webp"):
		return FormatWebP
	default:
		return FormatJPEG
	}
}

// labelFromHeader is the display label reported by Inspect.
func labelFromHeader(header string) string {
	switch {
	case strings.Contains(header, "jpeg"), strings.Contains(header, "jpg"):
		return "JPEG"
	case strings.Contains(header, "png"):
		return "PNG"
	case strings.Contains(header, "webp"):
		return "WebP"
	default:
		return "Unknown"
	}
}
