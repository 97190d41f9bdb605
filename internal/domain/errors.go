package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConsentNotFound = errors.New("consent not found")
	ErrUserIDRequired  = errors.New("user id is required")

	// ErrNoSignal is returned when no usable channel is left to fuse.
	ErrNoSignal = errors.New("no usable signal")
)

// NoSignalError carries the channels that were supplied but yielded nothing.
type NoSignalError struct {
	Supplied []Channel
}

func (e *NoSignalError) Error() string {
	if len(e.Supplied) == 0 {
		return "no usable signal: no channels supplied"
	}
	return fmt.Sprintf("no usable signal: %d channel(s) supplied, none usable", len(e.Supplied))
}

func (e *NoSignalError) Is(target error) bool { return target == ErrNoSignal }

// ConsentRequiredError is returned when a supplied channel lacks consent.
type ConsentRequiredError struct {
	Channel Channel
}

func (e *ConsentRequiredError) Error() string {
	return fmt.Sprintf("consent required for %s channel", e.Channel)
}

// InvalidWeightsError is returned when fusion weights are negative or all zero.
type InvalidWeightsError struct {
	Reason string
}

func (e *InvalidWeightsError) Error() string {
	return "invalid layer weights: " + e.Reason
}

// UnsupportedActionError is returned for directives with an unknown action type.
type UnsupportedActionError struct {
	ActionType ActionType
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action type %q", e.ActionType)
}
