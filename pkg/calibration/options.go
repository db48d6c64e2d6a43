package calibration

import (
	"fmt"

	"github.com/dougsko/scumcal/pkg/tuning"
)

// Default calibration parameters of the reference mote
const (
	DefaultMinChannel             = 11
	DefaultMaxChannel             = 26
	DefaultAnchorChannel          = 17
	DefaultFailureThreshold       = 2
	DefaultNominalMid             = 29
	DefaultFineHeadroom           = 7
	DefaultSlotDuration           = 10011
	DefaultSlotframeLength        = 101
	DefaultSlotframesPerCandidate = 2
)

// RxFineOffsets are added to the RX code depending on why the radio listens
type RxFineOffsets struct {
	Listen uint8 `yaml:"listen"`
	Sync   uint8 `yaml:"sync"`
	Ack    uint8 `yaml:"ack"`
}

// Options configures a calibration session
type Options struct {
	MinChannel    int
	MaxChannel    int
	AnchorChannel int

	// Consecutive failures on one candidate before moving to the next
	FailureThreshold int

	// Initial sweep window on the anchor channel
	InitialCoarse tuning.SweepRange
	NominalMid    uint8
	// Fine codes kept free above every RX window for RxFineOffsets
	FineHeadroom uint8

	// Time spent on one initial sweep candidate is
	// SlotframesPerCandidate * SlotframeLength * SweptChannels * SlotDuration
	SlotDuration           Ticks
	SlotframeLength        int
	SlotframesPerCandidate int
	// Channels the peer hops over while beaconing; zero means all channels
	SweptChannels int

	RxFineOffsets RxFineOffsets
	Arithmetic    tuning.Arithmetic
}

// DefaultOptions returns the reference session parameters
func DefaultOptions() Options {
	return Options{
		MinChannel:             DefaultMinChannel,
		MaxChannel:             DefaultMaxChannel,
		AnchorChannel:          DefaultAnchorChannel,
		FailureThreshold:       DefaultFailureThreshold,
		InitialCoarse:          tuning.SweepRange{Start: tuning.MinCode, End: tuning.MaxCode},
		NominalMid:             DefaultNominalMid,
		FineHeadroom:           DefaultFineHeadroom,
		SlotDuration:           DefaultSlotDuration,
		SlotframeLength:        DefaultSlotframeLength,
		SlotframesPerCandidate: DefaultSlotframesPerCandidate,
		RxFineOffsets:          RxFineOffsets{Listen: 7, Sync: 0, Ack: 3},
		Arithmetic:             tuning.DefaultArithmetic(),
	}
}

// Validate checks the options
func (o Options) Validate() error {
	if o.MinChannel < 0 || o.MaxChannel < o.MinChannel {
		return fmt.Errorf("%w: channel range %d..%d", ErrInvalidOptions, o.MinChannel, o.MaxChannel)
	}
	if o.AnchorChannel < o.MinChannel || o.AnchorChannel > o.MaxChannel {
		return fmt.Errorf("%w: anchor channel %d outside %d..%d", ErrInvalidOptions, o.AnchorChannel, o.MinChannel, o.MaxChannel)
	}
	if o.FailureThreshold < 1 || o.FailureThreshold > 255 {
		return fmt.Errorf("%w: failure threshold %d", ErrInvalidOptions, o.FailureThreshold)
	}
	if !o.InitialCoarse.Valid() {
		return fmt.Errorf("%w: initial coarse range %s", ErrInvalidOptions, o.InitialCoarse)
	}
	if o.NominalMid > tuning.MaxCode {
		return fmt.Errorf("%w: nominal mid %d", ErrInvalidOptions, o.NominalMid)
	}
	if o.FineHeadroom > tuning.MaxCode {
		return fmt.Errorf("%w: fine headroom %d", ErrInvalidOptions, o.FineHeadroom)
	}
	for _, off := range []uint8{o.RxFineOffsets.Listen, o.RxFineOffsets.Sync, o.RxFineOffsets.Ack} {
		if off > o.FineHeadroom {
			return fmt.Errorf("%w: RX fine offset %d exceeds headroom %d", ErrInvalidOptions, off, o.FineHeadroom)
		}
	}
	if o.SlotDuration == 0 || o.SlotframeLength < 1 || o.SlotframesPerCandidate < 1 || o.SweptChannels < 0 {
		return fmt.Errorf("%w: candidate timing", ErrInvalidOptions)
	}
	if err := o.Arithmetic.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// NumChannels returns the size of the channel range
func (o Options) NumChannels() int {
	return o.MaxChannel - o.MinChannel + 1
}

// CandidateTimeout is how long the initial sweep listens on one code
func (o Options) CandidateTimeout() Ticks {
	swept := o.SweptChannels
	if swept == 0 {
		swept = o.NumChannels()
	}
	return Ticks(o.SlotframesPerCandidate) * Ticks(o.SlotframeLength) * Ticks(swept) * o.SlotDuration
}

func (o Options) fineWindow() tuning.SweepRange {
	return tuning.SweepRange{Start: tuning.MinCode, End: tuning.MaxCode - o.FineHeadroom}
}
