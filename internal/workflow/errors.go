// Package workflow contains the milestone and daily-update approval rules.
// Everything here is pure: callers load state, apply a transition, and
// persist the result themselves.
package workflow

import "errors"

var (
	ErrUnauthorized           = errors.New("actor role does not permit this operation")
	ErrInvalidState           = errors.New("operation not permitted in current state")
	ErrWindowViolation        = errors.New("date outside milestone window")
	ErrDuplicateSubmission    = errors.New("daily update already exists for this day")
	ErrValidation             = errors.New("validation failed")
	ErrInvalidProgress        = errors.New("progress outside allowed range")
	ErrOutOfBounds            = errors.New("milestone dates outside project range")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrTooManyPhotos          = errors.New("too many photos attached")
	ErrNotFound               = errors.New("not found")
)
