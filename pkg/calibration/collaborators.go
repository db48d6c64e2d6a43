package calibration

import "github.com/dougsko/scumcal/pkg/tuning"

// Ticks is the timer service's time unit
type Ticks uint64

// TimerID identifies a timer created by a TimerService
type TimerID int

// Radio is the part of the radio driver calibration drives
type Radio interface {
	SetFrequency(code tuning.Code) error
	ReceiveEnable() error
	ReceiveNow() error
	TransmitEnable() error
	TransmitNow() error
	PowerOff() error
}

// TimerService schedules one-shot callbacks. Scheduling a timer that is
// already armed replaces its deadline; Cancel disarms it.
type TimerService interface {
	CreateTimer() TimerID
	ScheduleAbsolute(id TimerID, delay Ticks, cb func(TimerID))
	Cancel(id TimerID)
	CurrentTick() Ticks
}
