package hardware

import (
	"testing"

	"github.com/dougsko/scumcal/pkg/dsp"
	"github.com/dougsko/scumcal/pkg/tuning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSimConfig() SimConfig {
	return SimConfig{
		Arithmetic:    tuning.DefaultArithmetic(),
		MinChannel:    11,
		MaxChannel:    26,
		AnchorChannel: 17,
		TrueAnchor:    tuning.Code{Coarse: 23, Mid: 29, Fine: 12},
		TxSkew:        3,
		LockWindow:    1,
		NominalIF:     500,
		IFPerFine:     20,
		Seed:          1,
	}
}

func listen(t *testing.T, r *SimRadio, channel int, code tuning.Code) (Reception, bool) {
	t.Helper()
	require.NoError(t, r.SetChannel(channel))
	require.NoError(t, r.SetFrequency(code))
	require.NoError(t, r.ReceiveEnable())
	require.NoError(t, r.ReceiveNow())
	defer r.PowerOff()
	return r.Receive()
}

func send(t *testing.T, r *SimRadio, channel int, code tuning.Code) bool {
	t.Helper()
	require.NoError(t, r.SetChannel(channel))
	require.NoError(t, r.SetFrequency(code))
	require.NoError(t, r.TransmitEnable())
	require.NoError(t, r.TransmitNow())
	defer r.PowerOff()
	return r.Transmit()
}

func TestSimRadioReceive(t *testing.T) {
	r, err := NewSimRadio(testSimConfig(), nil)
	require.NoError(t, err)

	t.Run("Exact Anchor Code", func(t *testing.T) {
		rx, ok := listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 12})
		require.True(t, ok)
		assert.Equal(t, 17, rx.Channel)
		assert.Equal(t, uint32(500), rx.IFCount)
	})

	t.Run("Inside Lock Window", func(t *testing.T) {
		rx, ok := listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 13})
		require.True(t, ok)
		assert.Equal(t, uint32(480), rx.IFCount)

		rx, ok = listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 11})
		require.True(t, ok)
		assert.Equal(t, uint32(520), rx.IFCount)
	})

	t.Run("Outside Lock Window", func(t *testing.T) {
		_, ok := listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 14})
		assert.False(t, ok)
	})

	t.Run("Neighbor Channel", func(t *testing.T) {
		// 29 + 5 mid codes carries into the next coarse code
		_, ok := listen(t, r, 18, tuning.Code{Coarse: 24, Mid: 16, Fine: 12})
		assert.True(t, ok)

		_, ok = listen(t, r, 18, tuning.Code{Coarse: 23, Mid: 29, Fine: 12})
		assert.False(t, ok)
	})

	t.Run("Not Listening", func(t *testing.T) {
		require.NoError(t, r.SetChannel(17))
		require.NoError(t, r.SetFrequency(tuning.Code{Coarse: 23, Mid: 29, Fine: 12}))
		require.NoError(t, r.ReceiveEnable())
		_, ok := r.Receive()
		assert.False(t, ok)
		require.NoError(t, r.PowerOff())
	})
}

func TestSimRadioTransmit(t *testing.T) {
	r, err := NewSimRadio(testSimConfig(), nil)
	require.NoError(t, err)

	// TX sits one mid code below RX, then skewed by three fine codes
	assert.True(t, send(t, r, 17, tuning.Code{Coarse: 23, Mid: 28, Fine: 15}))
	assert.False(t, send(t, r, 17, tuning.Code{Coarse: 23, Mid: 28, Fine: 12}))
	assert.Equal(t, -3, r.Offset(tuning.ModeTX))

	t.Run("Transmit Without Enable", func(t *testing.T) {
		require.NoError(t, r.PowerOff())
		err := r.TransmitNow()
		assert.ErrorIs(t, err, ErrNotEnabled)
		assert.False(t, r.Transmit())
	})
}

func TestSimRadioValidation(t *testing.T) {
	r, err := NewSimRadio(testSimConfig(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, r.SetChannel(27), ErrChannelOutOfRange)
	assert.ErrorIs(t, r.SetFrequency(tuning.Code{Coarse: 0, Mid: 32, Fine: 0}), ErrInvalidCode)
	assert.ErrorIs(t, r.ReceiveNow(), ErrNotEnabled)

	cfg := testSimConfig()
	cfg.AnchorChannel = 30
	_, err = NewSimRadio(cfg, nil)
	assert.ErrorIs(t, err, ErrChannelOutOfRange)

	cfg = testSimConfig()
	cfg.LossRate = 1
	_, err = NewSimRadio(cfg, nil)
	assert.Error(t, err)
}

func TestSimRadioDrift(t *testing.T) {
	cfg := testSimConfig()
	cfg.DriftEverySlots = 2
	r, err := NewSimRadio(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, r.SetFrequency(tuning.Code{Coarse: 23, Mid: 29, Fine: 12}))
	assert.Equal(t, 0, r.Offset(tuning.ModeRX))

	r.AdvanceSlot()
	assert.Equal(t, 0, r.Drift())
	r.AdvanceSlot()
	assert.Equal(t, 1, r.Drift())
	assert.Equal(t, -1, r.Offset(tuning.ModeRX))

	for i := 0; i < 4; i++ {
		r.AdvanceSlot()
	}
	assert.Equal(t, 3, r.Drift())
	_, ok := listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 12})
	assert.False(t, ok)
	_, ok = listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 15})
	assert.True(t, ok)
}

func TestSimRadioLoss(t *testing.T) {
	cfg := testSimConfig()
	cfg.LossRate = 0.5
	r, err := NewSimRadio(cfg, nil)
	require.NoError(t, err)

	heard := 0
	for i := 0; i < 1000; i++ {
		if _, ok := listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 12}); ok {
			heard++
		}
	}
	assert.InDelta(t, 500, heard, 100)
}

func TestSimRadioWithMeter(t *testing.T) {
	meter, err := dsp.NewIFMeter(20000000, 2048)
	require.NoError(t, err)
	r, err := NewSimRadio(testSimConfig(), meter)
	require.NoError(t, err)

	rx, ok := listen(t, r, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 11})
	require.True(t, ok)
	assert.Equal(t, uint32(520), rx.IFCount)
}
