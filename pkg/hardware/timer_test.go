package hardware

import (
	"testing"

	"github.com/dougsko/scumcal/pkg/calibration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickTimer(t *testing.T) {
	t.Run("Fires At Deadline", func(t *testing.T) {
		tt := NewTickTimer()
		id := tt.CreateTimer()

		var fired []calibration.TimerID
		tt.ScheduleAbsolute(id, 10, func(got calibration.TimerID) { fired = append(fired, got) })

		assert.Equal(t, 0, tt.Advance(5))
		assert.Equal(t, calibration.Ticks(5), tt.CurrentTick())

		assert.Equal(t, 1, tt.Advance(5))
		assert.Equal(t, []calibration.TimerID{id}, fired)
		assert.Equal(t, calibration.Ticks(10), tt.CurrentTick())
	})

	t.Run("Cancel", func(t *testing.T) {
		tt := NewTickTimer()
		id := tt.CreateTimer()
		tt.ScheduleAbsolute(id, 10, func(calibration.TimerID) { t.Fatal("cancelled timer fired") })
		tt.Cancel(id)

		assert.Equal(t, 0, tt.Advance(20))
		_, ok := tt.NextDeadline()
		assert.False(t, ok)
	})

	t.Run("Reschedule Replaces Deadline", func(t *testing.T) {
		tt := NewTickTimer()
		id := tt.CreateTimer()
		count := 0
		tt.ScheduleAbsolute(id, 10, func(calibration.TimerID) { count++ })
		tt.ScheduleAbsolute(id, 30, func(calibration.TimerID) { count++ })

		deadline, ok := tt.NextDeadline()
		require.True(t, ok)
		assert.Equal(t, calibration.Ticks(30), deadline)

		tt.Advance(20)
		assert.Equal(t, 0, count)
		tt.Advance(10)
		assert.Equal(t, 1, count)
	})

	t.Run("Callback Rearms", func(t *testing.T) {
		tt := NewTickTimer()
		id := tt.CreateTimer()
		var at []calibration.Ticks
		var cb func(calibration.TimerID)
		cb = func(got calibration.TimerID) {
			at = append(at, tt.CurrentTick())
			tt.ScheduleAbsolute(got, 10, cb)
		}
		tt.ScheduleAbsolute(id, 10, cb)

		assert.Equal(t, 3, tt.Advance(35))
		assert.Equal(t, []calibration.Ticks{10, 20, 30}, at)
		assert.Equal(t, calibration.Ticks(35), tt.CurrentTick())
	})

	t.Run("Deadline Order", func(t *testing.T) {
		tt := NewTickTimer()
		a := tt.CreateTimer()
		b := tt.CreateTimer()
		assert.NotEqual(t, a, b)

		var order []calibration.TimerID
		record := func(id calibration.TimerID) { order = append(order, id) }
		tt.ScheduleAbsolute(a, 20, record)
		tt.ScheduleAbsolute(b, 10, record)

		tt.Advance(100)
		assert.Equal(t, []calibration.TimerID{b, a}, order)
	})

	t.Run("Advance To Next", func(t *testing.T) {
		tt := NewTickTimer()
		assert.False(t, tt.AdvanceToNext())

		id := tt.CreateTimer()
		fired := false
		tt.ScheduleAbsolute(id, 1000000, func(calibration.TimerID) { fired = true })

		assert.True(t, tt.AdvanceToNext())
		assert.True(t, fired)
		assert.Equal(t, calibration.Ticks(1000000), tt.CurrentTick())
		assert.False(t, tt.AdvanceToNext())
	})
}
