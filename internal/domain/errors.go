package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the parent of every registration validation failure so
// callers can match the whole family with errors.Is.
var ErrValidation = errors.New("validation failed")

var (
	ErrExternalIDRequired  = fmt.Errorf("%w: external id is required", ErrValidation)
	ErrOriginRequired      = fmt.Errorf("%w: origin is required", ErrValidation)
	ErrTitleRequired       = fmt.Errorf("%w: title is required", ErrValidation)
	ErrDescriptionRequired = fmt.Errorf("%w: description is required", ErrValidation)
	ErrPosterRequired      = fmt.Errorf("%w: poster is required", ErrValidation)
	ErrInvalidDate         = fmt.Errorf("%w: date must be an RFC 3339 offset date-time", ErrValidation)
	ErrInvalidMaxTickets   = fmt.Errorf("%w: max tickets must be a non-negative integer", ErrValidation)
	ErrParticipantRequired = fmt.Errorf("%w: participant is required", ErrValidation)
)

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrExternalIDNotFound = errors.New("external id not found")
	ErrDuplicateEvent     = errors.New("event already registered for this origin")

	// ErrSoldOutOrExpired is the single terminal rejection of a booking: the
	// conditional capacity update matched no row, either because the event is
	// sold out or because it already started. The two causes are not
	// distinguishable from the statement's result and are not distinguished.
	ErrSoldOutOrExpired = errors.New("event sold out or already started")
)
