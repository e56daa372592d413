package tracker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned by Start when no location capability is available
	ErrUnsupportedPlatform = errors.New("geolocation is not supported by your platform")

	// ErrStartFailure matches every StartError
	ErrStartFailure = errors.New("failed to start tracking")
)

// unsupportedPlatformMessage is the session error shown for ErrUnsupportedPlatform
const unsupportedPlatformMessage = "Geolocation is not supported by your platform"

// displayMessage returns the text recorded on the session for err.
func displayMessage(err error) string {
	if errors.Is(err, ErrUnsupportedPlatform) {
		return unsupportedPlatformMessage
	}
	return err.Error()
}

// StartError is returned when subscribing to the location stream fails.
type StartError struct {
	cause error
}

func NewStartError(cause error) *StartError {
	return &StartError{cause}
}

func (e *StartError) Error() string {
	return fmt.Sprintf("Failed to start tracking: %s", e.cause)
}

func (e *StartError) Unwrap() []error {
	return []error{ErrStartFailure, e.cause}
}

// StreamDeliveryError is a transient failure reported by the provider while
// tracking. It is recorded on the session and never aborts it.
type StreamDeliveryError struct {
	cause error
}

func NewStreamDeliveryError(cause error) *StreamDeliveryError {
	return &StreamDeliveryError{cause}
}

func (e *StreamDeliveryError) Error() string {
	return fmt.Sprintf("Error accessing location: %s", e.cause)
}

func (e *StreamDeliveryError) Unwrap() error {
	return e.cause
}
