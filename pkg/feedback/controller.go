// Package feedback keeps calibrated RX codes centered using the IF
// zero-crossing count the radio reports with every received frame.
package feedback

import (
	"errors"
	"fmt"

	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// Feedback errors
var (
	// ErrChannelOutOfRange indicates a channel outside the controller's range
	ErrChannelOutOfRange = errors.New("channel out of range")

	// ErrNotCalibrated indicates a sample for a channel whose RX is not calibrated yet
	ErrNotCalibrated = errors.New("channel RX not calibrated")

	// ErrInvalidOptions indicates unusable controller options
	ErrInvalidOptions = errors.New("invalid feedback options")
)

// Defaults of the reference radio: an IF count of 500 is 2.5 MHz and one
// fine code moves it by about 20.
const (
	DefaultCapacity  = 10
	DefaultNominalIF = 500
	DefaultTolerance = 25
)

// CodeStore gives the controller access to RX codes
type CodeStore interface {
	MinChannel() int
	MaxChannel() int
	TuningCode(channel int, mode tuning.Mode) (tuning.Code, error)
	SetTuningCode(channel int, mode tuning.Mode, code tuning.Code) error
	IsCalibrated(channel int, mode tuning.Mode) (bool, error)
}

// Adjustment is the action taken on a sample
type Adjustment int

const (
	AdjustNone Adjustment = iota
	AdjustUp
	AdjustDown
)

// String returns string representation of the adjustment
func (a Adjustment) String() string {
	switch a {
	case AdjustUp:
		return "up"
	case AdjustDown:
		return "down"
	default:
		return "none"
	}
}

// Options configures the controller
type Options struct {
	Capacity   int
	NominalIF  uint32
	Tolerance  uint32
	Arithmetic tuning.Arithmetic
}

// DefaultOptions returns the reference controller settings
func DefaultOptions() Options {
	return Options{
		Capacity:   DefaultCapacity,
		NominalIF:  DefaultNominalIF,
		Tolerance:  DefaultTolerance,
		Arithmetic: tuning.DefaultArithmetic(),
	}
}

// Validate checks the options
func (o Options) Validate() error {
	if o.Capacity < 3 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidOptions, o.Capacity)
	}
	if o.Tolerance >= o.NominalIF {
		return fmt.Errorf("%w: tolerance %d not below nominal IF %d", ErrInvalidOptions, o.Tolerance, o.NominalIF)
	}
	if err := o.Arithmetic.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// MinSamples is the number of samples needed before any decision
func (o Options) MinSamples() int {
	return o.Capacity / 3
}

// Controller is a bang-bang corrector on the RX fine code. It is not safe
// for concurrent use.
type Controller struct {
	opts    Options
	store   CodeStore
	sink    diag.Sink
	history []*IfHistory
}

// NewController creates a controller over the codes in store
func NewController(opts Options, store CodeStore, sink diag.Sink) (*Controller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: code store is required", ErrInvalidOptions)
	}
	n := store.MaxChannel() - store.MinChannel() + 1
	history := make([]*IfHistory, n)
	for i := range history {
		history[i] = NewIfHistory(opts.Capacity)
	}
	return &Controller{
		opts:    opts,
		store:   store,
		sink:    diag.Fanout(sink),
		history: history,
	}, nil
}

func (c *Controller) historyFor(channel int) (*IfHistory, error) {
	lo, hi := c.store.MinChannel(), c.store.MaxChannel()
	if channel < lo || channel > hi {
		return nil, fmt.Errorf("%w: %d not in %d..%d", ErrChannelOutOfRange, channel, lo, hi)
	}
	return c.history[channel-lo], nil
}

// History returns the sample history of a channel
func (c *Controller) History(channel int) (*IfHistory, error) {
	return c.historyFor(channel)
}

// AdjustRx feeds one IF estimate for channel. Zero estimates are invalid
// and dropped. Once enough samples are held their mean is compared against
// the nominal IF: above the band the RX code moves up one fine code, below
// it moves down one, and either move restarts the history.
func (c *Controller) AdjustRx(channel int, ifEstimate uint32) (Adjustment, error) {
	h, err := c.historyFor(channel)
	if err != nil {
		return AdjustNone, err
	}
	if ifEstimate == 0 {
		return AdjustNone, nil
	}
	calibrated, err := c.store.IsCalibrated(channel, tuning.ModeRX)
	if err != nil {
		return AdjustNone, err
	}
	if !calibrated {
		return AdjustNone, fmt.Errorf("%w: %d", ErrNotCalibrated, channel)
	}

	h.Add(ifEstimate)
	if h.Len() < c.opts.MinSamples() {
		return AdjustNone, nil
	}

	mean := h.Mean()
	var adj Adjustment
	switch {
	case mean > c.opts.NominalIF+c.opts.Tolerance:
		adj = AdjustUp
	case mean < c.opts.NominalIF-c.opts.Tolerance:
		adj = AdjustDown
	default:
		return AdjustNone, nil
	}

	code, err := c.store.TuningCode(channel, tuning.ModeRX)
	if err != nil {
		return AdjustNone, err
	}
	if adj == AdjustUp {
		code = c.opts.Arithmetic.IncrementFine(code, 1)
	} else {
		code = c.opts.Arithmetic.DecrementFine(code, 1)
	}
	if err := c.store.SetTuningCode(channel, tuning.ModeRX, code); err != nil {
		return AdjustNone, err
	}
	h.Reset()

	c.sink.Emit(diag.Stamp(diag.Event{
		Kind:    diag.KindFeedback,
		Channel: channel,
		Mode:    tuning.ModeRX,
		Code:    code,
		Message: fmt.Sprintf("mean IF %d", mean),
	}))
	return adj, nil
}

// Reset clears every channel's history
func (c *Controller) Reset() {
	for _, h := range c.history {
		h.Reset()
	}
}
