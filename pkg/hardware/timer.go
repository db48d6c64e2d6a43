package hardware

import (
	"sort"
	"sync"

	"github.com/dougsko/scumcal/pkg/calibration"
)

type simTimer struct {
	deadline calibration.Ticks
	cb       func(calibration.TimerID)
	armed    bool
}

// TickTimer is a virtual clock that only moves when told to. It satisfies
// calibration.TimerService. Callbacks run on the goroutine advancing the
// clock, without the timer lock held, so they may re-arm timers.
type TickTimer struct {
	mutex  sync.Mutex
	now    calibration.Ticks
	timers map[calibration.TimerID]*simTimer
	nextID calibration.TimerID
}

// NewTickTimer creates a clock at tick zero
func NewTickTimer() *TickTimer {
	return &TickTimer{
		timers: make(map[calibration.TimerID]*simTimer),
	}
}

// CreateTimer allocates a disarmed timer
func (t *TickTimer) CreateTimer() calibration.TimerID {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	id := t.nextID
	t.nextID++
	t.timers[id] = &simTimer{}
	return id
}

// ScheduleAbsolute arms id to fire delay ticks from now, replacing any
// earlier deadline
func (t *TickTimer) ScheduleAbsolute(id calibration.TimerID, delay calibration.Ticks, cb func(calibration.TimerID)) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	tm, ok := t.timers[id]
	if !ok {
		tm = &simTimer{}
		t.timers[id] = tm
	}
	tm.deadline = t.now + delay
	tm.cb = cb
	tm.armed = true
}

// Cancel disarms id
func (t *TickTimer) Cancel(id calibration.TimerID) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if tm, ok := t.timers[id]; ok {
		tm.armed = false
	}
}

// CurrentTick returns the clock
func (t *TickTimer) CurrentTick() calibration.Ticks {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.now
}

// NextDeadline returns the earliest armed deadline
func (t *TickTimer) NextDeadline() (calibration.Ticks, bool) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	_, deadline, ok := t.earliest()
	return deadline, ok
}

func (t *TickTimer) earliest() (calibration.TimerID, calibration.Ticks, bool) {
	ids := make([]calibration.TimerID, 0, len(t.timers))
	for id, tm := range t.timers {
		if tm.armed {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return 0, 0, false
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := t.timers[ids[i]], t.timers[ids[j]]
		if a.deadline != b.deadline {
			return a.deadline < b.deadline
		}
		return ids[i] < ids[j]
	})
	return ids[0], t.timers[ids[0]].deadline, true
}

// fireNext fires the earliest timer due at or before limit
func (t *TickTimer) fireNext(limit calibration.Ticks) bool {
	t.mutex.Lock()
	id, deadline, ok := t.earliest()
	if !ok || deadline > limit {
		t.mutex.Unlock()
		return false
	}
	tm := t.timers[id]
	tm.armed = false
	if deadline > t.now {
		t.now = deadline
	}
	cb := tm.cb
	t.mutex.Unlock()

	if cb != nil {
		cb(id)
	}
	return true
}

// Advance moves the clock forward by d, firing every timer that comes due
// in deadline order. It returns the number of timers fired.
func (t *TickTimer) Advance(d calibration.Ticks) int {
	t.mutex.Lock()
	target := t.now + d
	t.mutex.Unlock()

	fired := 0
	for t.fireNext(target) {
		fired++
	}

	t.mutex.Lock()
	if target > t.now {
		t.now = target
	}
	t.mutex.Unlock()
	return fired
}

// AdvanceToNext jumps the clock to the earliest armed deadline and fires
// that timer. It returns false when nothing is armed.
func (t *TickTimer) AdvanceToNext() bool {
	t.mutex.Lock()
	_, deadline, ok := t.earliest()
	t.mutex.Unlock()
	if !ok {
		return false
	}
	return t.fireNext(deadline)
}
