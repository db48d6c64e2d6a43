package calibration

// Event is an input to Calibrator.Handle
type Event interface {
	calibrationEvent()
}

// TimerExpired reports that a scheduled timer fired
type TimerExpired struct {
	Timer TimerID
}

// SignalObserved reports that the signal of interest was decoded on the
// code currently tuned for the initial sweep
type SignalObserved struct{}

// RxResult reports whether a receive slot on a channel worked
type RxResult struct {
	Channel int
	OK      bool
}

// TxResult reports whether a transmit slot on a channel was acknowledged
type TxResult struct {
	Channel int
	OK      bool
}

func (TimerExpired) calibrationEvent()   {}
func (SignalObserved) calibrationEvent() {}
func (RxResult) calibrationEvent()       {}
func (TxResult) calibrationEvent()       {}
