package api

import (
	"time"

	"pixora/internal/services"
)

// FormatTime converts a time to RFC3339 or returns empty string.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// NewErrorResponse builds the error body for err.
func NewErrorResponse(err error) ErrorResponse {
	if err == nil {
		return ErrorResponse{}
	}
	return ErrorResponse{Error: err.Error(), Kind: services.Kind(err)}
}
