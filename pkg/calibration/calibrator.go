// Package calibration discovers the RX and TX tuning code of every channel
// on a radio without a frequency reference.
//
// One anchor channel is found by a full sweep while listening for beacons.
// Every other channel starts from a window extrapolated off its neighbor and
// is narrowed by success and failure reports from the MAC layer. The
// Calibrator is not safe for concurrent use; callers serialize every call on
// one event loop.
package calibration

import (
	"fmt"

	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// State is the RX calibration phase of a session
type State int

const (
	StateInit State = iota
	StateInitialSweep
	StateRemainingSweepsInit
	StatePerChannelSweep
	StateCalibrated
)

// String returns string representation of the state
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateInitialSweep:
		return "initial_sweep"
	case StateRemainingSweepsInit:
		return "remaining_sweeps_init"
	case StatePerChannelSweep:
		return "per_channel_sweep"
	case StateCalibrated:
		return "calibrated"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Purpose says what the radio is tuned for in a slot
type Purpose int

const (
	PurposeTX Purpose = iota
	PurposeRX
	PurposeRXSync
	PurposeRXAck
)

// ChannelStatus is a point in time view of one channel
type ChannelStatus struct {
	Channel int             `json:"channel"`
	RX      ChannelModeInfo `json:"rx"`
	TX      ChannelModeInfo `json:"tx"`
}

// Calibrator runs one calibration session
type Calibrator struct {
	opts     Options
	arith    tuning.Arithmetic
	registry *Registry
	radio    Radio
	timers   TimerService
	sink     diag.Sink

	state                 State
	prepared              bool
	timer                 TimerID
	timerCreated          bool
	initialSweepFinished  bool
	numRxCalibrated       int
	numTxCalibrated       int
	consecutiveTxFailures int
}

// New creates a calibrator. A nil sink discards diagnostics; a panicking
// sink is ignored.
func New(opts Options, radio Radio, timers TimerService, sink diag.Sink) (*Calibrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if radio == nil || timers == nil {
		return nil, fmt.Errorf("%w: radio and timer service are required", ErrInvalidOptions)
	}
	registry, err := NewRegistry(opts.MinChannel, opts.MaxChannel)
	if err != nil {
		return nil, err
	}
	return &Calibrator{
		opts:     opts,
		arith:    opts.Arithmetic,
		registry: registry,
		radio:    radio,
		timers:   timers,
		sink:     diag.Fanout(sink),
	}, nil
}

// Options returns the session options
func (c *Calibrator) Options() Options { return c.opts }

// Registry returns the channel records. Readers must go through its
// accessors.
func (c *Calibrator) Registry() *Registry { return c.registry }

// State returns the current RX calibration phase
func (c *Calibrator) State() State { return c.state }

// InitialSweepFinished reports whether the anchor channel has been found
func (c *Calibrator) InitialSweepFinished() bool { return c.initialSweepFinished }

// InitInitialSweep prepares a new session: every record and counter is
// cleared and the anchor RX window covers the configured coarse range at the
// nominal mid code.
func (c *Calibrator) InitInitialSweep() error {
	fine := c.opts.fineWindow()
	cfg, err := tuning.NewSweepConfig(
		int(c.opts.InitialCoarse.Start), int(c.opts.InitialCoarse.End),
		int(c.opts.NominalMid), int(c.opts.NominalMid),
		int(fine.Start), int(fine.End))
	if err != nil {
		return fmt.Errorf("%w: RX channel %d: %w", ErrInvalidSweepConfig, c.opts.AnchorChannel, err)
	}

	if c.timerCreated {
		c.timers.Cancel(c.timer)
	} else {
		c.timer = c.timers.CreateTimer()
		c.timerCreated = true
	}

	c.registry.Reset()
	anchor, _ := c.registry.info(c.opts.AnchorChannel, tuning.ModeRX)
	*anchor = ChannelModeInfo{
		SweepConfig: cfg,
		TuningCode:  tuning.InitForSweep(cfg),
		initialized: true,
	}

	c.state = StateInit
	c.prepared = true
	c.initialSweepFinished = false
	c.numRxCalibrated = 0
	c.numTxCalibrated = 0
	c.consecutiveTxFailures = 0
	return nil
}

// StartInitialSweep tunes the anchor channel to its first candidate and arms
// the candidate timeout.
func (c *Calibrator) StartInitialSweep() error {
	if !c.prepared || c.state != StateInit {
		return fmt.Errorf("%w: start initial sweep in state %s", ErrWrongState, c.state)
	}
	c.state = StateInitialSweep
	c.tuneAnchor()
	c.armTimer()
	c.emit(diag.Event{Kind: diag.KindMilestone, Message: fmt.Sprintf("initial sweep started on channel %d", c.opts.AnchorChannel)})
	return nil
}

// EndInitialSweep declares the current anchor candidate good. It is called
// when the signal of interest was received on it.
func (c *Calibrator) EndInitialSweep() error {
	if c.state != StateInitialSweep {
		return fmt.Errorf("%w: end initial sweep in state %s", ErrWrongState, c.state)
	}
	if err := c.ReportSuccess(c.opts.AnchorChannel, tuning.ModeRX); err != nil {
		return err
	}
	c.initialSweepFinished = true
	c.timers.Cancel(c.timer)
	c.state = StateRemainingSweepsInit

	code, _ := c.registry.TuningCode(c.opts.AnchorChannel, tuning.ModeRX)
	c.emit(diag.Event{
		Kind:    diag.KindMilestone,
		Channel: c.opts.AnchorChannel,
		Mode:    tuning.ModeRX,
		Code:    code,
		Message: fmt.Sprintf("initial sweep finished on channel %d at %s", c.opts.AnchorChannel, code),
	})
	return nil
}

// InitRemainingSweeps narrows the anchor RX window around the found code and
// extrapolates RX and TX windows for every other channel, walking outward
// from the anchor. Any window that fails validation aborts the walk.
func (c *Calibrator) InitRemainingSweeps() error {
	if c.state != StateRemainingSweepsInit {
		return fmt.Errorf("%w: init remaining sweeps in state %s", ErrWrongState, c.state)
	}

	anchor := c.opts.AnchorChannel
	anchorRx, _ := c.registry.info(anchor, tuning.ModeRX)
	found := anchorRx.TuningCode
	if err := c.initModeInfo(anchor, tuning.ModeRX, found, 0); err != nil {
		return err
	}
	anchorRx.TuningCode = found
	anchorRx.Calibrated = true

	refs := map[tuning.Mode]tuning.Code{
		tuning.ModeRX: found,
		tuning.ModeTX: c.arith.EstimateTxFromRx(found),
	}
	if err := c.initModeInfo(anchor, tuning.ModeTX, refs[tuning.ModeTX], 0); err != nil {
		return err
	}

	modes := []tuning.Mode{tuning.ModeRX, tuning.ModeTX}
	for ch := anchor - 1; ch >= c.opts.MinChannel; ch-- {
		for _, mode := range modes {
			neighbor, _ := c.registry.info(ch+1, mode)
			est := c.arith.EstimatePreviousChannel(neighbor.TuningCode, mode)
			if err := c.initModeInfo(ch, mode, est, extraMidCodes(refs[mode], est)); err != nil {
				return err
			}
		}
	}
	for ch := anchor + 1; ch <= c.opts.MaxChannel; ch++ {
		for _, mode := range modes {
			neighbor, _ := c.registry.info(ch-1, mode)
			est := c.arith.EstimateNextChannel(neighbor.TuningCode, mode)
			if err := c.initModeInfo(ch, mode, est, extraMidCodes(est, refs[mode])); err != nil {
				return err
			}
		}
	}

	c.state = StatePerChannelSweep
	c.emit(diag.Event{Kind: diag.KindMilestone, Message: fmt.Sprintf("sweep windows set for channels %d..%d", c.opts.MinChannel, c.opts.MaxChannel)})
	c.updateState()
	return nil
}

// extraMidCodes widens a window by one mid code once the estimate sits two
// or more coarse codes beyond the anchor in the walk direction.
func extraMidCodes(higher, lower tuning.Code) int {
	if int(higher.Coarse)-int(lower.Coarse) >= 2 {
		return 1
	}
	return 0
}

func (c *Calibrator) initModeInfo(channel int, mode tuning.Mode, code tuning.Code, extra int) error {
	info, err := c.registry.info(channel, mode)
	if err != nil {
		return err
	}
	rolled := c.arith.RolloverMid(code, 1+extra)
	fine := c.opts.fineWindow()
	cfg, err := tuning.NewSweepConfig(
		int(rolled.Coarse), int(rolled.Coarse),
		int(rolled.Mid)-1-extra, int(rolled.Mid)+1+extra,
		int(fine.Start), int(fine.End))
	if err != nil {
		return fmt.Errorf("%w: %s channel %d: %w", ErrInvalidSweepConfig, mode, channel, err)
	}
	*info = ChannelModeInfo{
		SweepConfig: cfg,
		TuningCode:  tuning.InitForSweep(cfg),
		initialized: true,
	}
	return nil
}

// Handle feeds one event through the state machine
func (c *Calibrator) Handle(ev Event) error {
	switch e := ev.(type) {
	case TimerExpired:
		return c.onTimer(e.Timer)
	case SignalObserved:
		if c.state != StateInitialSweep {
			return nil
		}
		return c.EndInitialSweep()
	case RxResult:
		if e.OK {
			return c.ReportSuccess(e.Channel, tuning.ModeRX)
		}
		return c.ReportFailure(e.Channel, tuning.ModeRX)
	case TxResult:
		if e.OK {
			return c.ReportSuccess(e.Channel, tuning.ModeTX)
		}
		return c.ReportFailure(e.Channel, tuning.ModeTX)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}

func (c *Calibrator) onTimer(id TimerID) error {
	if !c.timerCreated || id != c.timer || c.state != StateInitialSweep || c.initialSweepFinished {
		return nil
	}
	anchor, _ := c.registry.info(c.opts.AnchorChannel, tuning.ModeRX)
	if anchor.Calibrated {
		return nil
	}

	c.advance(c.opts.AnchorChannel, tuning.ModeRX, anchor)
	c.tuneAnchor()
	c.armTimer()
	return nil
}

func (c *Calibrator) armTimer() {
	c.timers.ScheduleAbsolute(c.timer, c.opts.CandidateTimeout(), func(id TimerID) {
		_ = c.Handle(TimerExpired{Timer: id})
	})
}

func (c *Calibrator) tuneAnchor() {
	code, _ := c.registry.TuningCode(c.opts.AnchorChannel, tuning.ModeRX)
	c.radioStep("power off", c.radio.PowerOff)
	c.radioStep("set frequency", func() error { return c.radio.SetFrequency(code) })
	c.radioStep("receive enable", c.radio.ReceiveEnable)
	c.radioStep("receive now", c.radio.ReceiveNow)
}

func (c *Calibrator) radioStep(name string, step func() error) {
	if err := step(); err != nil {
		c.emit(diag.Event{Kind: diag.KindRadioError, Message: fmt.Sprintf("%s: %v", name, err)})
	}
}

func (c *Calibrator) advance(channel int, mode tuning.Mode, info *ChannelModeInfo) {
	wrapped := tuning.AtEnd(info.TuningCode, info.SweepConfig)
	info.TuningCode = tuning.AdvanceFine(info.TuningCode, info.SweepConfig)
	c.emit(diag.Event{Kind: diag.KindCandidate, Channel: channel, Mode: mode, Code: info.TuningCode})
	if wrapped {
		c.emit(diag.Event{Kind: diag.KindSweepWrapped, Channel: channel, Mode: mode, Code: info.TuningCode})
	}
}

// TuningCode returns the current code of a channel
func (c *Calibrator) TuningCode(channel int, mode tuning.Mode) (tuning.Code, error) {
	return c.registry.TuningCode(channel, mode)
}

// IsCalibrated reports whether a channel has seen its first success
func (c *Calibrator) IsCalibrated(channel int, mode tuning.Mode) (bool, error) {
	return c.registry.IsCalibrated(channel, mode)
}

// ReportFailure records a missed slot. TX failures always count towards the
// consecutive TX failure counter. On an uncalibrated channel every
// FailureThreshold failures move it to its next candidate.
func (c *Calibrator) ReportFailure(channel int, mode tuning.Mode) error {
	info, err := c.registry.initializedInfo(channel, mode)
	if err != nil {
		return err
	}
	if mode == tuning.ModeTX {
		c.consecutiveTxFailures++
	}
	if info.Calibrated {
		return nil
	}

	info.NumFailures++
	if int(info.NumFailures) >= c.opts.FailureThreshold {
		info.NumFailures = 0
		c.advance(channel, mode, info)
	}
	return nil
}

// ReportSuccess records a working slot. The first success calibrates the
// channel; an RX first success also reseeds the channel's TX window from the
// RX code while TX is uncalibrated.
func (c *Calibrator) ReportSuccess(channel int, mode tuning.Mode) error {
	info, err := c.registry.initializedInfo(channel, mode)
	if err != nil {
		return err
	}
	info.NumFailures = 0
	if mode == tuning.ModeTX {
		c.consecutiveTxFailures = 0
	}

	var seedErr error
	if !info.Calibrated {
		info.Calibrated = true
		switch mode {
		case tuning.ModeRX:
			c.numRxCalibrated++
			tx, _ := c.registry.info(channel, tuning.ModeTX)
			if !tx.Calibrated {
				seedErr = c.initModeInfo(channel, tuning.ModeTX, c.arith.EstimateTxFromRx(info.TuningCode), 0)
				if seedErr != nil {
					c.emit(diag.Event{Kind: diag.KindRadioError, Channel: channel, Mode: tuning.ModeTX, Message: seedErr.Error()})
				}
			}
		case tuning.ModeTX:
			c.numTxCalibrated++
		}
		c.emit(diag.Event{Kind: diag.KindCalibrated, Channel: channel, Mode: mode, Code: info.TuningCode})
		c.updateState()
	}
	return seedErr
}

func (c *Calibrator) updateState() {
	if c.state == StatePerChannelSweep && c.AllRxCalibrated() && c.AllTxCalibrated() {
		c.state = StateCalibrated
		c.emit(diag.Event{Kind: diag.KindMilestone, Message: "all channels calibrated"})
	}
}

// AllRxCalibrated reports whether every channel has calibrated RX at least
// once in this session
func (c *Calibrator) AllRxCalibrated() bool {
	return c.numRxCalibrated >= c.registry.NumChannels()
}

// AllTxCalibrated reports whether every channel has calibrated TX at least
// once in this session
func (c *Calibrator) AllTxCalibrated() bool {
	return c.numTxCalibrated >= c.registry.NumChannels()
}

// ConsecutiveTxFailures returns the number of TX failures since the last TX
// success on any channel
func (c *Calibrator) ConsecutiveTxFailures() int {
	return c.consecutiveTxFailures
}

// ResetConsecutiveTxFailures clears the consecutive TX failure counter
func (c *Calibrator) ResetConsecutiveTxFailures() {
	c.consecutiveTxFailures = 0
}

// TuneFor sets the radio frequency for a slot on channel
func (c *Calibrator) TuneFor(channel int, purpose Purpose) error {
	var (
		code tuning.Code
		err  error
	)
	switch purpose {
	case PurposeTX:
		code, err = c.registry.TuningCode(channel, tuning.ModeTX)
	case PurposeRX, PurposeRXSync, PurposeRXAck:
		code, err = c.registry.TuningCode(channel, tuning.ModeRX)
		if err == nil {
			code = c.arith.IncrementFine(code, int(c.rxFineOffset(purpose)))
		}
	default:
		return fmt.Errorf("unknown tuning purpose %d", purpose)
	}
	if err != nil {
		return err
	}
	if err := c.radio.SetFrequency(code); err != nil {
		c.emit(diag.Event{Kind: diag.KindRadioError, Channel: channel, Message: fmt.Sprintf("set frequency: %v", err)})
		return fmt.Errorf("failed to tune channel %d: %w", channel, err)
	}
	return nil
}

func (c *Calibrator) rxFineOffset(p Purpose) uint8 {
	switch p {
	case PurposeRXSync:
		return c.opts.RxFineOffsets.Sync
	case PurposeRXAck:
		return c.opts.RxFineOffsets.Ack
	default:
		return c.opts.RxFineOffsets.Listen
	}
}

// Snapshot returns every channel's records
func (c *Calibrator) Snapshot() []ChannelStatus {
	out := make([]ChannelStatus, 0, c.registry.NumChannels())
	for ch := c.opts.MinChannel; ch <= c.opts.MaxChannel; ch++ {
		rx, _ := c.registry.Info(ch, tuning.ModeRX)
		tx, _ := c.registry.Info(ch, tuning.ModeTX)
		out = append(out, ChannelStatus{Channel: ch, RX: rx, TX: tx})
	}
	return out
}

// NumCalibrated returns how many channels have calibrated RX and TX
func (c *Calibrator) NumCalibrated() (rx, tx int) {
	return c.numRxCalibrated, c.numTxCalibrated
}

func (c *Calibrator) emit(e diag.Event) {
	c.sink.Emit(diag.Stamp(e))
}
