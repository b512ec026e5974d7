package pipeline

import (
	"strings"

	"pixora/internal/imaging"
)

// Settings are the per-request processing options sent by the UI.
type Settings struct {
	Format          string `json:"format"`
	Quality         int    `json:"quality"`
	ResizeEnabled   bool   `json:"resizeEnabled"`
	ResizeMaxPx     int    `json:"resizeMaxPx"`
	ResizeCustomH   int    `json:"resizeCustomH"`
	RemoveBgEnabled bool   `json:"removeBgEnabled"`
}

// plan is Settings resolved against defaults.
type plan struct {
	format       imaging.Format
	formatForced bool
	quality      int
	maxW         int
	maxH         int
	removeBg     bool
}

func (s Settings) resolve(defaultQuality int) (plan, error) {
	format := imaging.FormatJPEG
	if strings.TrimSpace(s.Format) != "" {
		parsed, err := imaging.ParseFormat(s.Format)
		if err != nil {
			return plan{}, err
		}
		format = parsed
	}
	p := plan{format: format, removeBg: s.RemoveBgEnabled}

	// jpeg cannot carry the mask.
	if p.removeBg && p.format == imaging.FormatJPEG {
		p.format = imaging.FormatPNG
		p.formatForced = true
	}

	quality := s.Quality
	if quality == 0 {
		quality = defaultQuality
	}
	p.quality = imaging.ClampQuality(quality)

	if s.ResizeEnabled && s.ResizeMaxPx > 0 {
		p.maxW = s.ResizeMaxPx
		p.maxH = s.ResizeMaxPx
		if s.ResizeCustomH > 0 {
			p.maxH = s.ResizeCustomH
		}
	}
	return p, nil
}
