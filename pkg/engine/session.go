package engine

import (
	"errors"
	"fmt"

	"github.com/dougsko/scumcal/pkg/calibration"
	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/hardware"
	"github.com/dougsko/scumcal/pkg/logging"
	"github.com/dougsko/scumcal/pkg/tuning"
)

// ErrHalted is returned by Step after a hard session error until the next
// recalibration
var ErrHalted = errors.New("calibration halted")

// Step runs one unit of calibration work: a listening window on the
// current anchor candidate during the initial sweep, otherwise one RX or
// TX slot on the next channel of the round robin.
func (e *CoreEngine) Step() error {
	e.calMutex.Lock()
	defer e.calMutex.Unlock()

	if e.lastError != nil {
		return fmt.Errorf("%w: %v", ErrHalted, e.lastError)
	}

	switch e.calibrator.State() {
	case calibration.StateInit:
		return e.startSession()

	case calibration.StateInitialSweep:
		return e.sweepSlot()

	case calibration.StateRemainingSweepsInit:
		if err := e.calibrator.InitRemainingSweeps(); err != nil {
			// Hard error: reported once and never retried
			e.lastError = err
			e.emit(diag.Event{Kind: diag.KindRadioError, Message: err.Error()})
			return err
		}
		return nil

	default:
		return e.channelSlot()
	}
}

// startSession clears every record and starts a new initial sweep
func (e *CoreEngine) startSession() error {
	if err := e.calibrator.InitInitialSweep(); err != nil {
		e.lastError = err
		return err
	}
	e.controller.Reset()
	e.cursor = 0
	e.txPhase = false
	e.lastError = nil
	e.sessions++

	logging.Infof("ENGINE", "Starting calibration session %d", e.sessions)
	return e.calibrator.StartInitialSweep()
}

// Recalibrate abandons the current session and starts a new one
func (e *CoreEngine) Recalibrate() error {
	e.calMutex.Lock()
	defer e.calMutex.Unlock()
	return e.startSession()
}

// sweepSlot listens on the tuned anchor candidate for its whole window.
// When nothing is heard the candidate timeout fires and the calibrator
// moves to the next candidate.
func (e *CoreEngine) sweepSlot() error {
	opts := e.calibrator.Options()
	radio := e.board.Radio
	if err := radio.SetChannel(opts.AnchorChannel); err != nil {
		return err
	}

	for i := 0; i < opts.SlotframesPerCandidate; i++ {
		_, ok := radio.Receive()
		e.endSlot(0)
		if ok {
			return e.calibrator.Handle(calibration.SignalObserved{})
		}
	}

	if !e.board.Timer.AdvanceToNext() {
		return fmt.Errorf("initial sweep has no candidate timeout armed")
	}
	return nil
}

// channelSlot visits channels in order. A channel gets an RX slot and, once
// its RX code is calibrated, a TX slot right after it.
func (e *CoreEngine) channelSlot() error {
	opts := e.calibrator.Options()
	ch := opts.MinChannel + e.cursor

	var err error
	if e.txPhase {
		err = e.txSlot(ch)
		e.txPhase = false
		e.cursor = (e.cursor + 1) % opts.NumChannels()
	} else {
		err = e.rxSlot(ch)
		if calibrated, _ := e.calibrator.IsCalibrated(ch, tuning.ModeRX); calibrated {
			e.txPhase = true
		} else {
			e.cursor = (e.cursor + 1) % opts.NumChannels()
		}
	}
	if err != nil {
		return err
	}
	return e.checkSync()
}

func (e *CoreEngine) rxSlot(ch int) error {
	radio := e.board.Radio
	if err := radio.SetChannel(ch); err != nil {
		return err
	}
	if err := e.calibrator.TuneFor(ch, calibration.PurposeRXSync); err != nil {
		return err
	}

	var rx hardware.Reception
	ok := e.radioStep("receive enable", radio.ReceiveEnable) &&
		e.radioStep("receive now", radio.ReceiveNow)
	if ok {
		rx, ok = radio.Receive()
	}
	e.radioStep("power off", radio.PowerOff)
	e.endSlot(e.calibrator.Options().SlotDuration)

	if err := e.calibrator.Handle(calibration.RxResult{Channel: ch, OK: ok}); err != nil {
		return err
	}
	if !ok || !e.feedbackEnabled {
		return nil
	}
	if calibrated, _ := e.calibrator.IsCalibrated(ch, tuning.ModeRX); !calibrated {
		return nil
	}
	if _, err := e.controller.AdjustRx(ch, rx.IFCount); err != nil {
		return fmt.Errorf("feedback on channel %d: %w", ch, err)
	}
	return nil
}

func (e *CoreEngine) txSlot(ch int) error {
	radio := e.board.Radio
	if err := radio.SetChannel(ch); err != nil {
		return err
	}
	if err := e.calibrator.TuneFor(ch, calibration.PurposeTX); err != nil {
		return err
	}

	ok := e.radioStep("transmit enable", radio.TransmitEnable) &&
		e.radioStep("transmit now", radio.TransmitNow) &&
		radio.Transmit()
	e.radioStep("power off", radio.PowerOff)
	e.endSlot(e.calibrator.Options().SlotDuration)

	return e.calibrator.Handle(calibration.TxResult{Channel: ch, OK: ok})
}

// checkSync restarts calibration once a calibrated mote stops getting its
// transmissions acknowledged
func (e *CoreEngine) checkSync() error {
	if e.calibrator.State() != calibration.StateCalibrated {
		return nil
	}
	failures := e.calibrator.ConsecutiveTxFailures()
	if failures < e.config.Calibration.TxFailureCeiling {
		return nil
	}

	logging.Warnf("ENGINE", "Lost synchronization after %d consecutive TX failures, recalibrating", failures)
	e.emit(diag.Event{Kind: diag.KindMilestone, Message: fmt.Sprintf("lost sync after %d TX failures", failures)})
	return e.startSession()
}

func (e *CoreEngine) endSlot(d calibration.Ticks) {
	if d > 0 {
		e.board.Timer.Advance(d)
	}
	e.board.Radio.AdvanceSlot()
	e.slots++
}

func (e *CoreEngine) radioStep(name string, step func() error) bool {
	if err := step(); err != nil {
		e.emit(diag.Event{Kind: diag.KindRadioError, Message: fmt.Sprintf("%s: %v", name, err)})
		return false
	}
	return true
}

func (e *CoreEngine) emit(ev diag.Event) {
	e.sink.Emit(diag.Stamp(ev))
}
