package calibration

import (
	"fmt"

	"github.com/dougsko/scumcal/pkg/tuning"
)

// ChannelModeInfo is the calibration record of one channel in one mode
type ChannelModeInfo struct {
	Calibrated  bool               `json:"calibrated"`
	TuningCode  tuning.Code        `json:"tuning_code"`
	SweepConfig tuning.SweepConfig `json:"sweep_config"`
	NumFailures uint8              `json:"num_failures"`

	initialized bool
}

// Initialized reports whether a sweep window has been set up
func (i ChannelModeInfo) Initialized() bool {
	return i.initialized
}

type channelInfo struct {
	rx ChannelModeInfo
	tx ChannelModeInfo
}

// Registry holds the RX and TX records of a contiguous channel range
type Registry struct {
	minChannel int
	maxChannel int
	channels   []channelInfo
}

// NewRegistry creates an empty registry for channels min..max
func NewRegistry(minChannel, maxChannel int) (*Registry, error) {
	if minChannel < 0 || maxChannel < minChannel {
		return nil, fmt.Errorf("%w: channel range %d..%d", ErrInvalidOptions, minChannel, maxChannel)
	}
	return &Registry{
		minChannel: minChannel,
		maxChannel: maxChannel,
		channels:   make([]channelInfo, maxChannel-minChannel+1),
	}, nil
}

// MinChannel returns the lowest channel
func (r *Registry) MinChannel() int { return r.minChannel }

// MaxChannel returns the highest channel
func (r *Registry) MaxChannel() int { return r.maxChannel }

// NumChannels returns the number of channels
func (r *Registry) NumChannels() int { return len(r.channels) }

// Index converts a channel number to its slot
func (r *Registry) Index(channel int) (int, error) {
	if channel < r.minChannel || channel > r.maxChannel {
		return 0, fmt.Errorf("%w: %d not in %d..%d", ErrChannelOutOfRange, channel, r.minChannel, r.maxChannel)
	}
	return channel - r.minChannel, nil
}

func (r *Registry) info(channel int, mode tuning.Mode) (*ChannelModeInfo, error) {
	idx, err := r.Index(channel)
	if err != nil {
		return nil, err
	}
	switch mode {
	case tuning.ModeRX:
		return &r.channels[idx].rx, nil
	case tuning.ModeTX:
		return &r.channels[idx].tx, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, mode)
	}
}

func (r *Registry) initializedInfo(channel int, mode tuning.Mode) (*ChannelModeInfo, error) {
	info, err := r.info(channel, mode)
	if err != nil {
		return nil, err
	}
	if !info.initialized {
		return nil, fmt.Errorf("%w: %s %d", ErrChannelNotInitialized, mode, channel)
	}
	return info, nil
}

// Info returns a copy of a channel's record
func (r *Registry) Info(channel int, mode tuning.Mode) (ChannelModeInfo, error) {
	info, err := r.info(channel, mode)
	if err != nil {
		return ChannelModeInfo{}, err
	}
	return *info, nil
}

// TuningCode returns the current code of a channel
func (r *Registry) TuningCode(channel int, mode tuning.Mode) (tuning.Code, error) {
	info, err := r.initializedInfo(channel, mode)
	if err != nil {
		return tuning.Code{}, err
	}
	return info.TuningCode, nil
}

// SetTuningCode replaces the current code of a channel
func (r *Registry) SetTuningCode(channel int, mode tuning.Mode, code tuning.Code) error {
	info, err := r.initializedInfo(channel, mode)
	if err != nil {
		return err
	}
	if !code.Valid() {
		return fmt.Errorf("%w: %s", tuning.ErrCodeOutOfRange, code)
	}
	info.TuningCode = code
	return nil
}

// IsCalibrated reports whether a channel has seen its first success. A
// channel that was never initialized is not calibrated.
func (r *Registry) IsCalibrated(channel int, mode tuning.Mode) (bool, error) {
	info, err := r.info(channel, mode)
	if err != nil {
		return false, err
	}
	return info.Calibrated, nil
}

// Reset forgets every record
func (r *Registry) Reset() {
	for i := range r.channels {
		r.channels[i] = channelInfo{}
	}
}
