package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeBinary(t *testing.T) {
	data, err := Code{23, 29, 5}.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{23, 29, 5}, data)

	var c Code
	require.NoError(t, c.UnmarshalBinary([]byte{1, 2, 3}))
	assert.Equal(t, Code{1, 2, 3}, c)

	assert.ErrorIs(t, c.UnmarshalBinary([]byte{1, 2}), ErrShortBuffer)
	assert.ErrorIs(t, c.UnmarshalBinary([]byte{1, 32, 3}), ErrCodeOutOfRange)
	assert.Equal(t, Code{1, 2, 3}, c, "failed decode must not modify the code")
}

func TestSweepConfigBinary(t *testing.T) {
	var s SweepConfig
	require.NoError(t, s.UnmarshalBinary([]byte{23, 23, 27, 31, 0, 24}))
	assert.Equal(t, Single(23), s.Coarse)
	assert.Equal(t, SweepRange{Start: 27, End: 31}, s.Mid)

	data, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{23, 23, 27, 31, 0, 24}, data)

	assert.ErrorIs(t, s.UnmarshalBinary([]byte{5, 2, 0, 0, 0, 0}), ErrInvalidSweepConfig)
}

func TestCalibrationReport(t *testing.T) {
	r := CalibrationReport{Sequence: 7, Channel: 17, Command: CommandChangeChannel, Code: Code{23, 29, 5}}

	data, err := r.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 17, 0, 0, 0xFF, 0, 23, 29, 5, 0}, data)

	var decoded CalibrationReport
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, r, decoded)

	assert.ErrorIs(t, decoded.UnmarshalBinary(data[:8]), ErrShortBuffer)
}

func TestTxCodeTable(t *testing.T) {
	table := TxCodeTable{Sequence: 2, Channel: 18, Codes: []Code{{23, 24, 10}, {23, 25, 3}}}

	data, err := table.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, TxCodeTableSize)
	assert.Equal(t, []byte{2, 18, 23, 24, 10, 23, 25, 3}, data[:8])

	var decoded TxCodeTable
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, table, decoded)

	table.Codes = make([]Code, MaxTxCodesPerChannel+1)
	_, err = table.MarshalBinary()
	assert.ErrorIs(t, err, ErrTooManyCodes)
}

func TestAverageFineByMidPair(t *testing.T) {
	codes := []Code{
		{23, 29, 3}, {23, 29, 5}, {23, 29, 9},
		{23, 30, 2}, {23, 30, 4},
		{24, 1, 7},
	}

	assert.Equal(t, []Code{{23, 29, 6}, {23, 30, 3}, {24, 1, 7}}, AverageFineByMidPair(codes))
	assert.Empty(t, AverageFineByMidPair(nil))

	var many []Code
	for m := uint8(0); m < 10; m++ {
		many = append(many, Code{1, m, 0})
	}
	assert.Len(t, AverageFineByMidPair(many), MaxTxCodesPerChannel)
}
