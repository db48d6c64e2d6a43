package calibration

import "errors"

// Calibration errors
var (
	// ErrChannelOutOfRange indicates a channel outside the configured range
	ErrChannelOutOfRange = errors.New("channel out of range")

	// ErrChannelNotInitialized indicates a channel whose sweep window was never set up
	ErrChannelNotInitialized = errors.New("channel sweep not initialized")

	// ErrInvalidOptions indicates calibration options that cannot describe a session
	ErrInvalidOptions = errors.New("invalid calibration options")

	// ErrInvalidSweepConfig indicates a derived sweep window failed validation
	ErrInvalidSweepConfig = errors.New("invalid sweep configuration")

	// ErrWrongState indicates a lifecycle call out of order
	ErrWrongState = errors.New("calibration lifecycle call out of order")

	// ErrUnknownMode indicates a mode other than RX or TX
	ErrUnknownMode = errors.New("unknown channel mode")

	// ErrUnknownEvent indicates an event type the calibrator does not handle
	ErrUnknownEvent = errors.New("unknown calibration event")
)
