package tuning

import "errors"

// Tuning errors
var (
	// ErrInvalidSweepRange indicates a range bound outside the code span or start > end
	ErrInvalidSweepRange = errors.New("invalid sweep range")

	// ErrInvalidSweepConfig indicates at least one level of a sweep config is invalid
	ErrInvalidSweepConfig = errors.New("invalid sweep configuration")

	// ErrInvalidConstants indicates tuning arithmetic constants that cannot carry
	ErrInvalidConstants = errors.New("invalid tuning constants")

	// ErrCodeOutOfRange indicates a decoded code field outside the code span
	ErrCodeOutOfRange = errors.New("tuning code field out of range")

	// ErrShortBuffer indicates a wire buffer too short for the structure
	ErrShortBuffer = errors.New("buffer too short")

	// ErrTooManyCodes indicates a TX code table larger than the payload allows
	ErrTooManyCodes = errors.New("too many tuning codes for payload")
)
