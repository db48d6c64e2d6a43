package hardware

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/dougsko/scumcal/pkg/dsp"
	"github.com/dougsko/scumcal/pkg/tuning"
)

var (
	ErrChannelOutOfRange = errors.New("channel out of range")
	ErrInvalidCode       = errors.New("invalid tuning code")
	ErrNotEnabled        = errors.New("radio not enabled")
)

// SimConfig describes a simulated mote and the peer it calibrates against
type SimConfig struct {
	Arithmetic    tuning.Arithmetic
	MinChannel    int
	MaxChannel    int
	AnchorChannel int

	// RX code that hears the peer on the anchor channel. Every other true
	// code follows from it through the channel spacing.
	TrueAnchor tuning.Code
	// Fine codes by which every true TX code misses its RX-TX estimate
	TxSkew int

	// Largest |tuned - true| offset, in fine codes, that still works
	LockWindow int
	// True codes move up one fine code every DriftEverySlots slots; zero
	// disables drift
	DriftEverySlots int
	// Probability that a working slot is lost anyway
	LossRate float64
	Seed     int64

	// IF counter: NominalIF when tuned exactly, IFPerFine counts per fine
	// code of offset
	NominalIF uint32
	IFPerFine uint32
}

// Validate checks the simulation parameters
func (c SimConfig) Validate() error {
	if err := c.Arithmetic.Validate(); err != nil {
		return err
	}
	if c.MaxChannel < c.MinChannel || c.AnchorChannel < c.MinChannel || c.AnchorChannel > c.MaxChannel {
		return fmt.Errorf("%w: anchor %d in %d..%d", ErrChannelOutOfRange, c.AnchorChannel, c.MinChannel, c.MaxChannel)
	}
	if !c.TrueAnchor.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCode, c.TrueAnchor)
	}
	if c.LockWindow < 0 || c.DriftEverySlots < 0 || c.LossRate < 0 || c.LossRate >= 1 {
		return fmt.Errorf("invalid simulation parameters")
	}
	return nil
}

type radioState int

const (
	radioOff radioState = iota
	radioRxReady
	radioRx
	radioTxReady
	radioTx
)

func (s radioState) String() string {
	switch s {
	case radioOff:
		return "off"
	case radioRxReady:
		return "rx_ready"
	case radioRx:
		return "rx"
	case radioTxReady:
		return "tx_ready"
	case radioTx:
		return "tx"
	default:
		return "unknown"
	}
}

// Reception is a packet heard by the simulated receiver
type Reception struct {
	Channel int
	IFCount uint32
}

// SimRadio is a mote radio whose true codes are known only to the
// simulation. It satisfies calibration.Radio.
type SimRadio struct {
	cfg   SimConfig
	mutex sync.Mutex
	rng   *rand.Rand
	meter *dsp.IFMeter

	rxTruth []int
	txTruth []int
	period  int

	channel int
	tuned   tuning.Code
	state   radioState
	slots   int
	drift   int
}

// NewSimRadio creates a simulated radio. meter may be nil, in which case IF
// counts are reported without going through the FFT.
func NewSimRadio(cfg SimConfig, meter *dsp.IFMeter) (*SimRadio, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := cfg.Arithmetic
	n := cfg.MaxChannel - cfg.MinChannel + 1
	rx := make([]tuning.Code, n)
	anchor := cfg.AnchorChannel - cfg.MinChannel
	rx[anchor] = cfg.TrueAnchor
	for i := anchor - 1; i >= 0; i-- {
		rx[i] = a.EstimatePreviousChannel(rx[i+1], tuning.ModeRX)
	}
	for i := anchor + 1; i < n; i++ {
		rx[i] = a.EstimateNextChannel(rx[i-1], tuning.ModeRX)
	}

	r := &SimRadio{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		meter:   meter,
		rxTruth: make([]int, n),
		txTruth: make([]int, n),
		period:  a.Period(),
		channel: cfg.AnchorChannel,
	}
	for i, code := range rx {
		r.rxTruth[i] = a.Position(code)
		r.txTruth[i] = a.Position(a.EstimateTxFromRx(code)) + cfg.TxSkew
	}
	return r, nil
}

// SetChannel selects the channel the next slot happens on
func (r *SimRadio) SetChannel(channel int) error {
	if channel < r.cfg.MinChannel || channel > r.cfg.MaxChannel {
		return fmt.Errorf("%w: %d", ErrChannelOutOfRange, channel)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.channel = channel
	return nil
}

// Channel returns the selected channel
func (r *SimRadio) Channel() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.channel
}

// SetFrequency tunes the synthesizer
func (r *SimRadio) SetFrequency(code tuning.Code) error {
	if !code.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidCode, code)
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.tuned = code
	return nil
}

// Tuned returns the code last set
func (r *SimRadio) Tuned() tuning.Code {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.tuned
}

// ReceiveEnable readies the receiver
func (r *SimRadio) ReceiveEnable() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.state = radioRxReady
	return nil
}

// ReceiveNow starts listening
func (r *SimRadio) ReceiveNow() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.state != radioRxReady {
		return fmt.Errorf("%w: receive in state %s", ErrNotEnabled, r.state)
	}
	r.state = radioRx
	return nil
}

// TransmitEnable readies the transmitter
func (r *SimRadio) TransmitEnable() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.state = radioTxReady
	return nil
}

// TransmitNow starts sending
func (r *SimRadio) TransmitNow() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.state != radioTxReady {
		return fmt.Errorf("%w: transmit in state %s", ErrNotEnabled, r.state)
	}
	r.state = radioTx
	return nil
}

// PowerOff turns the radio off
func (r *SimRadio) PowerOff() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.state = radioOff
	return nil
}

// AdvanceSlot marks the end of a slot and applies drift
func (r *SimRadio) AdvanceSlot() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.slots++
	if r.cfg.DriftEverySlots > 0 && r.slots%r.cfg.DriftEverySlots == 0 {
		r.drift++
	}
}

// Drift returns how many fine codes the true codes have moved so far
func (r *SimRadio) Drift() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.drift
}

// Offset returns the fine code distance from the true code of the selected
// channel to the tuned code
func (r *SimRadio) Offset(mode tuning.Mode) int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.offset(mode)
}

func (r *SimRadio) offset(mode tuning.Mode) int {
	truth := r.rxTruth
	if mode == tuning.ModeTX {
		truth = r.txTruth
	}
	p := r.period
	d := (r.cfg.Arithmetic.Position(r.tuned) - truth[r.channel-r.cfg.MinChannel] - r.drift) % p
	if d < 0 {
		d += p
	}
	if d > p/2 {
		d -= p
	}
	return d
}

func (r *SimRadio) works(mode tuning.Mode) bool {
	d := r.offset(mode)
	if d < -r.cfg.LockWindow || d > r.cfg.LockWindow {
		return false
	}
	return r.rng.Float64() >= r.cfg.LossRate
}

// Receive reports whether the listening radio heard the peer in this slot
func (r *SimRadio) Receive() (Reception, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.state != radioRx || !r.works(tuning.ModeRX) {
		return Reception{}, false
	}
	return Reception{Channel: r.channel, IFCount: r.ifCount(r.offset(tuning.ModeRX))}, true
}

// Transmit reports whether the peer acknowledged the packet sent in this
// slot
func (r *SimRadio) Transmit() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.state == radioTx && r.works(tuning.ModeTX)
}

func (r *SimRadio) ifCount(offset int) uint32 {
	count := int(r.cfg.NominalIF) - int(r.cfg.IFPerFine)*offset
	if count < 1 {
		count = 1
	}
	if r.meter == nil {
		return uint32(count)
	}
	if count > r.meter.MaxCount() {
		count = r.meter.MaxCount()
	}
	samples := r.meter.Synthesize(float64(count), func() float64 { return r.rng.NormFloat64() * 0.1 })
	measured, err := r.meter.Measure(samples)
	if err != nil {
		return uint32(count)
	}
	return measured
}
