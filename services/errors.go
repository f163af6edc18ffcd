package services

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrParticipantDeleted  = errors.New("participant account is deactivated")
	ErrInvalidSubmission   = errors.New("invalid submission")
	// ErrConcurrentUpdate is returned when the participant row kept changing
	// underneath the accumulator after all retries.
	ErrConcurrentUpdate = errors.New("participant was modified concurrently")

	errVersionConflict = errors.New("participant version conflict")
)
