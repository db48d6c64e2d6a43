package hardware

import (
	"testing"

	"github.com/dougsko/scumcal/pkg/config"
	"github.com/dougsko/scumcal/pkg/tuning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBoard(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := config.Default()
		cfg.Simulation.LossRate = 0

		board, err := NewBoard(cfg)
		require.NoError(t, err)
		require.NotNil(t, board.Radio)
		require.NotNil(t, board.Timer)
		assert.Equal(t, 2048, board.Meter.WindowSize())

		// The configured true anchor code is heard on the anchor channel
		rx, ok := listen(t, board.Radio, 17, tuning.Code{Coarse: 23, Mid: 29, Fine: 12})
		require.True(t, ok)
		assert.Equal(t, uint32(500), rx.IFCount)
	})

	t.Run("Bad Anchor Code", func(t *testing.T) {
		cfg := config.Default()
		cfg.Simulation.TrueAnchorCode = "nope"
		_, err := NewBoard(cfg)
		assert.Error(t, err)
	})

	t.Run("Bad IF Window", func(t *testing.T) {
		cfg := config.Default()
		cfg.Simulation.IFWindow = 8
		_, err := NewBoard(cfg)
		assert.Error(t, err)
	})
}

func TestSimConfigFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Simulation.TxSkew = -2
	cfg.Feedback.NominalIF = 600

	sim, err := SimConfigFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, -2, sim.TxSkew)
	assert.Equal(t, uint32(600), sim.NominalIF)
	assert.Equal(t, tuning.Code{Coarse: 23, Mid: 29, Fine: 12}, sim.TrueAnchor)
	assert.Equal(t, 17, sim.AnchorChannel)
}
