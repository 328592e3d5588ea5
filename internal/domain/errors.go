package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("resource conflict")

	ErrSlackWebhookMissing = errors.New("slack webhook url is not configured")
)

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// UpstreamError reports a non-success response from an outbound delivery target.
type UpstreamError struct {
	Service    string
	StatusCode int
	Status     string
}

func (e *UpstreamError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s responded %d (%s)", e.Service, e.StatusCode, e.Status)
	}
	return fmt.Sprintf("%s responded %d", e.Service, e.StatusCode)
}
