package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrDecode     = errors.New("decode error")
	ErrEncode     = errors.New("encode error")
	ErrIntegrity  = errors.New("integrity error")
	ErrInference  = errors.New("inference error")
	ErrUntracked  = errors.New("untracked artifact")
	ErrIO         = errors.New("io error")
	ErrLock       = errors.New("lock poisoned")
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the short name of the marker carried by err, or "internal"
// when no marker is present.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrDecode):
		return "decode"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrInference):
		return "inference"
	case errors.Is(err, ErrUntracked):
		return "untracked"
	case errors.Is(err, ErrLock):
		return "lock"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "internal"
	}
}

// HTTPStatus maps an error to the status code the API should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDecode), errors.Is(err, ErrEncode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUntracked):
		return http.StatusForbidden
	case errors.Is(err, ErrIntegrity):
		return http.StatusBadGateway
	case errors.Is(err, ErrLock):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
