package tuning

import "fmt"

// Code span of every synthesizer level
const (
	MinCode = 0
	MaxCode = 31

	codeSpan = MaxCode - MinCode + 1
)

// Reference hardware constants, determined empirically
const (
	DefaultFineCodesPerMidTransition   = 9
	DefaultMidCodesPerCoarseTransition = 14
	DefaultMidCodesBetweenChannels     = 5
	DefaultMidCodesBetweenRxAndTx      = 1
)

// Mode selects the receive or transmit side of a channel
type Mode int

const (
	ModeRX Mode = iota
	ModeTX
)

// String returns string representation of the mode
func (m Mode) String() string {
	switch m {
	case ModeRX:
		return "RX"
	case ModeTX:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the mode as "RX" or "TX"
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes "RX" or "TX"
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMode parses "rx" or "tx"
func ParseMode(s string) (Mode, error) {
	switch s {
	case "rx", "RX", "Rx":
		return ModeRX, nil
	case "tx", "TX", "Tx":
		return ModeTX, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

// Code is a three level synthesizer setting. Coarse has the largest
// frequency step and fine the smallest.
type Code struct {
	Coarse uint8 `json:"coarse" yaml:"coarse"`
	Mid    uint8 `json:"mid" yaml:"mid"`
	Fine   uint8 `json:"fine" yaml:"fine"`
}

// NewCode builds a code from ints, rejecting fields outside the code span
func NewCode(coarse, mid, fine int) (Code, error) {
	for _, v := range []int{coarse, mid, fine} {
		if v < MinCode || v > MaxCode {
			return Code{}, fmt.Errorf("%w: %d.%d.%d", ErrCodeOutOfRange, coarse, mid, fine)
		}
	}
	return Code{Coarse: uint8(coarse), Mid: uint8(mid), Fine: uint8(fine)}, nil
}

// ParseCode parses the CC.MM.FF form produced by String
func ParseCode(s string) (Code, error) {
	var coarse, mid, fine int
	if _, err := fmt.Sscanf(s, "%d.%d.%d", &coarse, &mid, &fine); err != nil {
		return Code{}, fmt.Errorf("invalid code %q: %w", s, err)
	}
	return NewCode(coarse, mid, fine)
}

// String renders the code as CC.MM.FF
func (c Code) String() string {
	return fmt.Sprintf("%02d.%02d.%02d", c.Coarse, c.Mid, c.Fine)
}

// Valid reports whether every field lies within the code span
func (c Code) Valid() bool {
	return c.Coarse <= MaxCode && c.Mid <= MaxCode && c.Fine <= MaxCode
}

// Compare orders codes lexicographically by coarse, mid, fine.
// It returns -1, 0 or +1.
func (c Code) Compare(o Code) int {
	switch {
	case c.Coarse != o.Coarse:
		return cmpUint8(c.Coarse, o.Coarse)
	case c.Mid != o.Mid:
		return cmpUint8(c.Mid, o.Mid)
	default:
		return cmpUint8(c.Fine, o.Fine)
	}
}

func cmpUint8(a, b uint8) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// Arithmetic carries the per hardware revision constants used to move a
// code across levels and channels.
type Arithmetic struct {
	// Fine codes re-covered by the next mid code
	FineCodesPerMidTransition int `yaml:"fine_codes_per_mid_transition"`
	// Mid codes re-covered by the next coarse code
	MidCodesPerCoarseTransition int `yaml:"mid_codes_per_coarse_transition"`
	MidCodesBetweenChannelsRX   int `yaml:"mid_codes_between_channels_rx"`
	MidCodesBetweenChannelsTX   int `yaml:"mid_codes_between_channels_tx"`
	// RX minus TX mid code
	MidCodesBetweenRxAndTx int `yaml:"mid_codes_between_rx_and_tx"`
}

// DefaultArithmetic returns the reference hardware constants
func DefaultArithmetic() Arithmetic {
	return Arithmetic{
		FineCodesPerMidTransition:   DefaultFineCodesPerMidTransition,
		MidCodesPerCoarseTransition: DefaultMidCodesPerCoarseTransition,
		MidCodesBetweenChannelsRX:   DefaultMidCodesBetweenChannels,
		MidCodesBetweenChannelsTX:   DefaultMidCodesBetweenChannels,
		MidCodesBetweenRxAndTx:      DefaultMidCodesBetweenRxAndTx,
	}
}

// Validate checks that the constants leave a positive carry stride
func (a Arithmetic) Validate() error {
	if a.FineCodesPerMidTransition < 0 || a.FineCodesPerMidTransition >= codeSpan {
		return fmt.Errorf("%w: fine codes per mid transition %d", ErrInvalidConstants, a.FineCodesPerMidTransition)
	}
	if a.MidCodesPerCoarseTransition < 0 || a.MidCodesPerCoarseTransition >= codeSpan {
		return fmt.Errorf("%w: mid codes per coarse transition %d", ErrInvalidConstants, a.MidCodesPerCoarseTransition)
	}
	if a.MidCodesBetweenChannelsRX <= 0 || a.MidCodesBetweenChannelsRX > MaxCode {
		return fmt.Errorf("%w: RX mid codes between channels %d", ErrInvalidConstants, a.MidCodesBetweenChannelsRX)
	}
	if a.MidCodesBetweenChannelsTX <= 0 || a.MidCodesBetweenChannelsTX > MaxCode {
		return fmt.Errorf("%w: TX mid codes between channels %d", ErrInvalidConstants, a.MidCodesBetweenChannelsTX)
	}
	if a.MidCodesBetweenRxAndTx < 0 || a.MidCodesBetweenRxAndTx > MaxCode {
		return fmt.Errorf("%w: mid codes between RX and TX %d", ErrInvalidConstants, a.MidCodesBetweenRxAndTx)
	}
	return nil
}

func (a Arithmetic) fineStride() int { return codeSpan - a.FineCodesPerMidTransition }
func (a Arithmetic) midStride() int { return codeSpan - a.MidCodesPerCoarseTransition }

// IncrementFine adds n fine steps, carrying into mid whenever fine passes
// MaxCode.
func (a Arithmetic) IncrementFine(c Code, n int) Code {
	f := int(c.Fine) + n
	carries := 0
	for f > MaxCode {
		f -= a.fineStride()
		carries++
	}
	c.Fine = uint8(f)
	return a.IncrementMid(c, carries)
}

// DecrementFine subtracts n fine steps, borrowing from mid whenever fine
// drops below MinCode.
func (a Arithmetic) DecrementFine(c Code, n int) Code {
	f := int(c.Fine) - n
	borrows := 0
	for f < MinCode {
		f += a.fineStride()
		borrows++
	}
	c.Fine = uint8(f)
	return a.DecrementMid(c, borrows)
}

// IncrementMid adds n mid steps, carrying into coarse. Coarse wraps around
// the code span.
func (a Arithmetic) IncrementMid(c Code, n int) Code {
	m := int(c.Mid) + n
	carries := 0
	for m > MaxCode {
		m -= a.midStride()
		carries++
	}
	c.Mid = uint8(m)
	c.Coarse = wrapCoarse(int(c.Coarse) + carries)
	return c
}

// DecrementMid subtracts n mid steps, borrowing from coarse. Coarse wraps
// around the code span.
func (a Arithmetic) DecrementMid(c Code, n int) Code {
	m := int(c.Mid) - n
	borrows := 0
	for m < MinCode {
		m += a.midStride()
		borrows++
	}
	c.Mid = uint8(m)
	c.Coarse = wrapCoarse(int(c.Coarse) - borrows)
	return c
}

func wrapCoarse(v int) uint8 {
	v = (v - MinCode) % codeSpan
	if v < 0 {
		v += codeSpan
	}
	return uint8(v + MinCode)
}

// RolloverMid moves a mid code that sits within threshold of either end of
// the span onto the neighboring coarse code, so a window of +/- threshold
// mid codes around it does not straddle a coarse transition. The shift is
// one coarse step's worth of mid codes, so the position is unchanged. Codes
// already on the outermost coarse value are returned unchanged.
func (a Arithmetic) RolloverMid(c Code, threshold int) Code {
	shift := a.midStride()
	switch {
	case int(c.Mid)+threshold > MaxCode && c.Coarse < MaxCode && int(c.Mid)-shift >= MinCode:
		c.Mid -= uint8(shift)
		c.Coarse++
	case int(c.Mid) < MinCode+threshold && c.Coarse > MinCode && int(c.Mid)+shift <= MaxCode:
		c.Mid += uint8(shift)
		c.Coarse--
	}
	return c
}

func (a Arithmetic) channelSpacing(mode Mode) int {
	if mode == ModeTX {
		return a.MidCodesBetweenChannelsTX
	}
	return a.MidCodesBetweenChannelsRX
}

// EstimatePreviousChannel estimates the code of the channel below the one
// tuned by c.
func (a Arithmetic) EstimatePreviousChannel(c Code, mode Mode) Code {
	return a.DecrementMid(c, a.channelSpacing(mode))
}

// EstimateNextChannel estimates the code of the channel above the one tuned
// by c.
func (a Arithmetic) EstimateNextChannel(c Code, mode Mode) Code {
	return a.IncrementMid(c, a.channelSpacing(mode))
}

// EstimateTxFromRx estimates a channel's TX code from its RX code
func (a Arithmetic) EstimateTxFromRx(c Code) Code {
	return a.DecrementMid(c, a.MidCodesBetweenRxAndTx)
}

// EstimateRxFromTx estimates a channel's RX code from its TX code
func (a Arithmetic) EstimateRxFromTx(c Code) Code {
	return a.IncrementMid(c, a.MidCodesBetweenRxAndTx)
}

// Position maps a code onto a linear synthesizer scale on which every fine
// step counts one. Codes that alias the same frequency through the level
// overlaps share a position.
func (a Arithmetic) Position(c Code) int {
	fs := a.fineStride()
	return int(c.Coarse)*a.midStride()*fs + int(c.Mid)*fs + int(c.Fine)
}

// Period is the position span after which coarse wraps
func (a Arithmetic) Period() int {
	return codeSpan * a.midStride() * a.fineStride()
}
