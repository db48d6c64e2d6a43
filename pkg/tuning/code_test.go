package tuning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allCodes() []Code {
	codes := make([]Code, 0, codeSpan*codeSpan*codeSpan)
	for c := MinCode; c <= MaxCode; c++ {
		for m := MinCode; m <= MaxCode; m++ {
			for f := MinCode; f <= MaxCode; f++ {
				codes = append(codes, Code{Coarse: uint8(c), Mid: uint8(m), Fine: uint8(f)})
			}
		}
	}
	return codes
}

func TestArithmeticValidate(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		assert.NoError(t, DefaultArithmetic().Validate())
	})

	t.Run("Overlap Consumes Span", func(t *testing.T) {
		a := DefaultArithmetic()
		a.FineCodesPerMidTransition = codeSpan
		assert.ErrorIs(t, a.Validate(), ErrInvalidConstants)
	})

	t.Run("Zero Channel Spacing", func(t *testing.T) {
		a := DefaultArithmetic()
		a.MidCodesBetweenChannelsTX = 0
		assert.ErrorIs(t, a.Validate(), ErrInvalidConstants)
	})
}

func TestIncrementDecrement(t *testing.T) {
	a := DefaultArithmetic()

	tests := []struct {
		name string
		got  Code
		want Code
	}{
		{"fine no carry", a.IncrementFine(Code{23, 29, 5}, 3), Code{23, 29, 8}},
		{"fine carry into mid", a.IncrementFine(Code{23, 29, 30}, 3), Code{23, 30, 10}},
		{"fine borrow from mid", a.DecrementFine(Code{23, 29, 1}, 3), Code{23, 28, 21}},
		{"fine carry through mid into coarse", a.IncrementFine(Code{23, 31, 31}, 1), Code{24, 14, 9}},
		{"mid carry into coarse", a.IncrementMid(Code{23, 30, 5}, 5), Code{24, 17, 5}},
		{"mid borrow from coarse", a.DecrementMid(Code{23, 2, 5}, 5), Code{22, 15, 5}},
		{"coarse wraps up", a.IncrementMid(Code{31, 31, 0}, 1), Code{0, 14, 0}},
		{"coarse wraps down", a.DecrementMid(Code{0, 0, 0}, 1), Code{31, 17, 0}},
		{"large step carries repeatedly", a.IncrementFine(Code{0, 0, 0}, 255), Code{0, 10, 25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestFineRoundTrip(t *testing.T) {
	t.Run("Without Overlap Is Exact", func(t *testing.T) {
		a := Arithmetic{MidCodesBetweenChannelsRX: 5, MidCodesBetweenChannelsTX: 5, MidCodesBetweenRxAndTx: 1}
		require.NoError(t, a.Validate())

		for _, code := range allCodes() {
			for n := 0; n <= 255; n++ {
				up := a.IncrementFine(code, n)
				if !up.Valid() {
					t.Fatalf("Increment of %s by %d left the code span: %s", code, n, up)
				}
				back := a.DecrementFine(up, n)
				if back != code {
					t.Fatalf("Expected %s after +%d/-%d, got %s", code, n, n, back)
				}
			}
		}
	})

	t.Run("With Overlap Preserves Position", func(t *testing.T) {
		a := DefaultArithmetic()
		period := a.Period()

		for _, code := range allCodes() {
			for n := 0; n <= 255; n++ {
				up := a.IncrementFine(code, n)
				back := a.DecrementFine(up, n)
				if !up.Valid() || !back.Valid() {
					t.Fatalf("Round trip of %s by %d left the code span: %s, %s", code, n, up, back)
				}

				if (a.Position(up)-a.Position(code)-n)%period != 0 {
					t.Fatalf("Expected %s +%d to move %d positions", code, n, n)
				}
				if (a.Position(back)-a.Position(code))%period != 0 {
					t.Fatalf("Expected %s and %s to share a position", code, back)
				}
			}
		}
	})

	t.Run("With Overlap Is Exact Without Carry", func(t *testing.T) {
		a := DefaultArithmetic()
		code := Code{12, 20, 4}
		for n := 0; n <= MaxCode-4; n++ {
			assert.Equal(t, code, a.DecrementFine(a.IncrementFine(code, n), n))
		}
	})
}

func TestRolloverMid(t *testing.T) {
	a := DefaultArithmetic()

	tests := []struct {
		name      string
		code      Code
		threshold int
		want      Code
	}{
		{"near top moves to next coarse", Code{23, 31, 4}, 2, Code{24, 13, 4}},
		{"at threshold edge", Code{23, 30, 4}, 1, Code{23, 30, 4}},
		{"near bottom moves to previous coarse", Code{23, 0, 4}, 1, Code{22, 18, 4}},
		{"middle untouched", Code{23, 16, 4}, 2, Code{23, 16, 4}},
		{"top coarse cannot roll up", Code{31, 31, 4}, 2, Code{31, 31, 4}},
		{"bottom coarse cannot roll down", Code{0, 0, 4}, 2, Code{0, 0, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.RolloverMid(tt.code, tt.threshold)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, a.Position(tt.code), a.Position(got))
		})
	}
}

func TestEstimates(t *testing.T) {
	a := DefaultArithmetic()
	a.MidCodesBetweenChannelsTX = 6

	code := Code{23, 20, 7}
	assert.Equal(t, Code{23, 25, 7}, a.EstimateNextChannel(code, ModeRX))
	assert.Equal(t, Code{23, 26, 7}, a.EstimateNextChannel(code, ModeTX))
	assert.Equal(t, Code{23, 15, 7}, a.EstimatePreviousChannel(code, ModeRX))
	assert.Equal(t, Code{23, 14, 7}, a.EstimatePreviousChannel(code, ModeTX))
	assert.Equal(t, Code{23, 19, 7}, a.EstimateTxFromRx(code))
	assert.Equal(t, Code{23, 21, 7}, a.EstimateRxFromTx(code))

	// next channel across a coarse transition
	assert.Equal(t, Code{24, 16, 7}, a.EstimateNextChannel(Code{23, 29, 7}, ModeRX))
}

func TestCodeHelpers(t *testing.T) {
	t.Run("String", func(t *testing.T) {
		assert.Equal(t, "23.29.05", Code{23, 29, 5}.String())
	})

	t.Run("Compare", func(t *testing.T) {
		assert.Equal(t, -1, Code{1, 31, 31}.Compare(Code{2, 0, 0}))
		assert.Equal(t, 1, Code{2, 1, 0}.Compare(Code{2, 0, 31}))
		assert.Equal(t, 0, Code{2, 1, 3}.Compare(Code{2, 1, 3}))
	})

	t.Run("NewCode", func(t *testing.T) {
		c, err := NewCode(23, 29, 5)
		require.NoError(t, err)
		assert.Equal(t, Code{23, 29, 5}, c)

		_, err = NewCode(23, 32, 5)
		assert.ErrorIs(t, err, ErrCodeOutOfRange)
		_, err = NewCode(-1, 0, 0)
		assert.ErrorIs(t, err, ErrCodeOutOfRange)
	})

	t.Run("ParseMode", func(t *testing.T) {
		m, err := ParseMode("tx")
		require.NoError(t, err)
		assert.Equal(t, ModeTX, m)
		assert.Equal(t, "RX", ModeRX.String())

		_, err = ParseMode("both")
		assert.Error(t, err)
	})

	t.Run("ParseCode", func(t *testing.T) {
		c, err := ParseCode("23.29.12")
		require.NoError(t, err)
		assert.Equal(t, Code{23, 29, 12}, c)
		assert.Equal(t, "23.29.12", c.String())

		_, err = ParseCode("23.32.0")
		assert.ErrorIs(t, err, ErrCodeOutOfRange)
		_, err = ParseCode("garbage")
		assert.Error(t, err)
	})
}
