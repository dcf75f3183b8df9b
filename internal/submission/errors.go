package submission

import "errors"

var (
	// ErrAlreadyFinalized is returned when an action is applied to a
	// record already in a terminal state. Callers treat this as benign:
	// it commonly results from a duplicate chat-button click after the
	// record was finalized.
	ErrAlreadyFinalized = errors.New("submission already finalized")

	// ErrInvalidRejection is returned when a reject action is missing
	// its category or reason.
	ErrInvalidRejection = errors.New(
		"rejection requires a category and a non-empty reason",
	)

	// ErrUnknownAction is returned when the state machine receives an
	// action type it does not recognize.
	ErrUnknownAction = errors.New("unknown moderation action")
)
