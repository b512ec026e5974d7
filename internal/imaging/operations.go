package imaging

import resample "github.com/disintegration/imaging"

// Info describes an encoded image without re-encoding it.
type Info struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"sizeBytes"`
	Format    string `json:"format"`
}

// Inspect decodes a blob and reports its dimensions. The format label comes
// from the data URL header and is "Unknown" when the header names no known
// type.
func Inspect(blob Blob) (Info, error) {
	r, _, err := Decode(blob.Data, blob.Hint)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Width:     r.Width(),
		Height:    r.Height(),
		SizeBytes: len(blob.Data),
		Format:    labelFromHeader(blob.Header),
	}, nil
}

// ResizeOptions configures a standalone resize.
type ResizeOptions struct {
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	KeepAspect bool   `json:"keepAspect"`
	Format     string `json:"format,omitempty"`
	Quality    int    `json:"quality,omitempty"`
}

// ResizeResult is the encoded output of a standalone resize.
type ResizeResult struct {
	DataURL   string `json:"dataUrl"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	SizeBytes int    `json:"sizeBytes"`
}

// DefaultResizeQuality applies when a resize request names no quality.
const DefaultResizeQuality = 85

// ResizeBlob decodes, resizes and re-encodes a blob. The output format
// defaults to the blob's hint.
func ResizeBlob(blob Blob, opts ResizeOptions) (ResizeResult, error) {
	format, err := outputFormat(opts.Format, blob.Hint)
	if err != nil {
		return ResizeResult{}, err
	}
	quality := opts.Quality
	if quality == 0 {
		quality = DefaultResizeQuality
	}
	r, _, err := Decode(blob.Data, blob.Hint)
	if err != nil {
		return ResizeResult{}, err
	}
	w, h, ok := ScaledSize(r.Width(), r.Height(), Target{Width: opts.Width, Height: opts.Height}, opts.KeepAspect)
	if ok {
		r = resampleTo(r, w, h, resample.Lanczos)
	}
	data, err := Encode(r, format, quality)
	if err != nil {
		return ResizeResult{}, err
	}
	return ResizeResult{
		DataURL:   FormatDataURL(data, format),
		Width:     r.Width(),
		Height:    r.Height(),
		SizeBytes: len(data),
	}, nil
}

// CompressOptions configures a standalone re-encode.
type CompressOptions struct {
	Quality int    `json:"quality"`
	Format  string `json:"format,omitempty"`
}

// CompressResult reports the size change of a re-encode.
type CompressResult struct {
	DataURL      string  `json:"dataUrl"`
	SizeBytes    int     `json:"sizeBytes"`
	OriginalSize int     `json:"originalSize"`
	SavedPercent float64 `json:"savedPercent"`
}

// CompressBlob re-encodes a blob, by default in its hinted format.
// SavedPercent is negative when the output grew.
func CompressBlob(blob Blob, opts CompressOptions) (CompressResult, error) {
	format, err := outputFormat(opts.Format, blob.Hint)
	if err != nil {
		return CompressResult{}, err
	}
	r, _, err := Decode(blob.Data, blob.Hint)
	if err != nil {
		return CompressResult{}, err
	}
	data, err := Encode(r, format, opts.Quality)
	if err != nil {
		return CompressResult{}, err
	}
	original := len(blob.Data)
	saved := 0.0
	if original > 0 {
		saved = float64(original-len(data)) / float64(original) * 100
	}
	return CompressResult{
		DataURL:      FormatDataURL(data, format),
		SizeBytes:    len(data),
		OriginalSize: original,
		SavedPercent: saved,
	}, nil
}

func outputFormat(requested string, fallback Format) (Format, error) {
	if requested == "" {
		return fallback, nil
	}
	return ParseFormat(requested)
}
