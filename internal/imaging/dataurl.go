package imaging

import (
	"encoding/base64"
	"strings"

	"pixora/internal/services"
)

// Blob is an encoded image received from the UI.
type Blob struct {
	Data   []byte
	Hint   Format
	Header string
}

// NewBlob wraps raw bytes with an explicit hint.
func NewBlob(data []byte, hint Format) Blob {
	return Blob{Data: data, Hint: hint, Header: "data:" + hint.MIME() + ";base64"}
}

// ParseDataURL splits a data URL into its payload and a format hint.
func ParseDataURL(dataURL string) (Blob, error) {
	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return Blob{}, services.Wrap(services.ErrDecode, "imaging", "parse data url", "missing ',' separator", nil)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Blob{}, services.Wrap(services.ErrDecode, "imaging", "parse data url", "invalid base64 payload", err)
	}
	return Blob{Data: data, Hint: hintFromHeader(header), Header: header}, nil
}

// FormatDataURL renders encoded bytes as a base64 data URL.
func FormatDataURL(data []byte, format Format) string {
	var b strings.Builder
	b.Grow(len("data:;base64,") + len(format.MIME()) + base64.StdEncoding.EncodedLen(len(data)))
	b.WriteString("data:")
	b.WriteString(format.MIME())
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(data))
	return b.String()
}
