package feedback

import (
	"testing"

	"github.com/dougsko/scumcal/pkg/diag"
	"github.com/dougsko/scumcal/pkg/tuning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	codes      map[int]tuning.Code
	calibrated map[int]bool
}

func newFakeStore() *fakeStore {
	s := &fakeStore{codes: make(map[int]tuning.Code), calibrated: make(map[int]bool)}
	for ch := 11; ch <= 26; ch++ {
		s.codes[ch] = tuning.Code{Coarse: 23, Mid: 29, Fine: 10}
		s.calibrated[ch] = true
	}
	return s
}

func (s *fakeStore) MinChannel() int { return 11 }
func (s *fakeStore) MaxChannel() int { return 26 }

func (s *fakeStore) TuningCode(ch int, mode tuning.Mode) (tuning.Code, error) {
	return s.codes[ch], nil
}

func (s *fakeStore) SetTuningCode(ch int, mode tuning.Mode, code tuning.Code) error {
	s.codes[ch] = code
	return nil
}

func (s *fakeStore) IsCalibrated(ch int, mode tuning.Mode) (bool, error) {
	return s.calibrated[ch], nil
}

func newController(t *testing.T, store CodeStore, sink diag.Sink) *Controller {
	t.Helper()
	c, err := NewController(DefaultOptions(), store, sink)
	require.NoError(t, err)
	return c
}

func TestIfHistory(t *testing.T) {
	h := NewIfHistory(4)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, uint32(0), h.Mean())

	h.Add(100)
	h.Add(200)
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, uint32(150), h.Mean())

	h.Add(300)
	h.Add(400)
	assert.True(t, h.Full())
	assert.Equal(t, 4, h.Len())

	// overwrites the oldest sample
	h.Add(500)
	assert.Equal(t, 4, h.Len())
	assert.Equal(t, uint32(350), h.Mean())

	h.Reset()
	assert.False(t, h.Full())
	assert.Equal(t, 0, h.Len())
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())
	assert.Equal(t, 3, DefaultOptions().MinSamples())

	opts := DefaultOptions()
	opts.Capacity = 2
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)

	opts = DefaultOptions()
	opts.Tolerance = 600
	assert.ErrorIs(t, opts.Validate(), ErrInvalidOptions)

	_, err := NewController(DefaultOptions(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestAdjustRxHysteresis(t *testing.T) {
	store := newFakeStore()
	events := &diag.Recorder{}
	c := newController(t, store, events)
	start := store.codes[17]

	for i := 0; i < 2; i++ {
		adj, err := c.AdjustRx(17, 600)
		require.NoError(t, err)
		assert.Equal(t, AdjustNone, adj)
		assert.Equal(t, start, store.codes[17])
	}

	adj, err := c.AdjustRx(17, 600)
	require.NoError(t, err)
	assert.Equal(t, AdjustUp, adj)
	assert.Equal(t, tuning.Code{Coarse: 23, Mid: 29, Fine: 11}, store.codes[17])

	h, err := c.History(17)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len(), "history restarts after a correction")

	// a fresh window is needed before the next move
	adj, err = c.AdjustRx(17, 600)
	require.NoError(t, err)
	assert.Equal(t, AdjustNone, adj)
	assert.Equal(t, tuning.Code{Coarse: 23, Mid: 29, Fine: 11}, store.codes[17])

	feedback := events.OfKind(diag.KindFeedback)
	require.Len(t, feedback, 1)
	assert.Equal(t, "~17 23.29.11", feedback[0].Line())
}

func TestAdjustRxDown(t *testing.T) {
	store := newFakeStore()
	store.codes[12] = tuning.Code{Coarse: 23, Mid: 29, Fine: 0}
	c := newController(t, store, nil)

	var adj Adjustment
	var err error
	for i := 0; i < 3; i++ {
		adj, err = c.AdjustRx(12, 400)
		require.NoError(t, err)
	}
	assert.Equal(t, AdjustDown, adj)
	// borrows from mid rather than clamping
	assert.Equal(t, tuning.Code{Coarse: 23, Mid: 28, Fine: 22}, store.codes[12])
}

func TestAdjustRxWithinBand(t *testing.T) {
	store := newFakeStore()
	c := newController(t, store, nil)
	start := store.codes[20]

	for _, s := range []uint32{510, 490, 525, 475, 500, 520, 480, 505, 495, 515, 485, 500} {
		adj, err := c.AdjustRx(20, s)
		require.NoError(t, err)
		assert.Equal(t, AdjustNone, adj)
	}
	assert.Equal(t, start, store.codes[20])

	h, _ := c.History(20)
	assert.True(t, h.Full(), "history keeps accumulating inside the band")
	assert.Equal(t, 10, h.Len())
}

func TestAdjustRxAveragesWindow(t *testing.T) {
	store := newFakeStore()
	c := newController(t, store, nil)

	// mean 520 stays put, one more high sample pushes it over the band
	for _, s := range []uint32{520, 520, 520} {
		adj, err := c.AdjustRx(15, s)
		require.NoError(t, err)
		assert.Equal(t, AdjustNone, adj)
	}
	adj, err := c.AdjustRx(15, 560)
	require.NoError(t, err)
	assert.Equal(t, AdjustUp, adj)
}

func TestAdjustRxZeroSample(t *testing.T) {
	store := newFakeStore()
	c := newController(t, store, nil)
	start := store.codes[17]

	for i := 0; i < 20; i++ {
		adj, err := c.AdjustRx(17, 0)
		require.NoError(t, err)
		assert.Equal(t, AdjustNone, adj)
	}

	h, _ := c.History(17)
	assert.Equal(t, 0, h.Len())
	assert.Equal(t, start, store.codes[17])
}

func TestAdjustRxGuards(t *testing.T) {
	store := newFakeStore()
	store.calibrated[13] = false
	c := newController(t, store, nil)

	_, err := c.AdjustRx(13, 600)
	assert.ErrorIs(t, err, ErrNotCalibrated)
	h, _ := c.History(13)
	assert.Equal(t, 0, h.Len())

	_, err = c.AdjustRx(27, 600)
	assert.ErrorIs(t, err, ErrChannelOutOfRange)
	_, err = c.AdjustRx(10, 0)
	assert.ErrorIs(t, err, ErrChannelOutOfRange)
}

func TestControllerReset(t *testing.T) {
	store := newFakeStore()
	c := newController(t, store, nil)

	_, err := c.AdjustRx(11, 600)
	require.NoError(t, err)
	c.Reset()
	h, _ := c.History(11)
	assert.Equal(t, 0, h.Len())
}
