package domain

import (
	"errors"
	"strings"
)

var (
	// Common domain errors
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrMissingParameters = errors.New("missing parameters")
	ErrInvalidPlanBands  = errors.New("invalid plan bands")

	// Session lifecycle
	ErrSessionNotFound   = errors.New("checkout session not found")
	ErrSessionExpired    = errors.New("checkout session expired")
	ErrSessionSuperseded = errors.New("checkout session superseded by a newer attempt")

	// Collaborators
	ErrUpstream = errors.New("upstream call failed")
	ErrRelay    = errors.New("order platform relay failed")

	// Webhooks
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrWebhookSecretMissing = errors.New("webhook secret not configured")
)

// ValidationError reports which mandatory request fields were absent.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return ErrMissingParameters.Error() + ": " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrMissingParameters
}
