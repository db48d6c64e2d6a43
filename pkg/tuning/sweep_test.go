package tuning

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSweep(t *testing.T, cs, ce, ms, me, fs, fe int) SweepConfig {
	t.Helper()
	s, err := NewSweepConfig(cs, ce, ms, me, fs, fe)
	require.NoError(t, err)
	return s
}

func TestSweepValidate(t *testing.T) {
	t.Run("Valid Config", func(t *testing.T) {
		s := mustSweep(t, 0, 31, 29, 29, 0, 24)
		assert.NoError(t, s.Validate())
		assert.True(t, ValidSweepConfig(s))
	})

	t.Run("Inverted Coarse", func(t *testing.T) {
		s := SweepConfig{
			Coarse: SweepRange{Start: 5, End: 2},
			Mid:    SweepRange{Start: 0, End: 31},
			Fine:   SweepRange{Start: 0, End: 31},
		}
		assert.ErrorIs(t, s.Validate(), ErrInvalidSweepConfig)
		assert.False(t, ValidSweepConfig(s))
	})

	t.Run("Bound Outside Span", func(t *testing.T) {
		for _, s := range []SweepConfig{
			{Coarse: Single(32), Mid: Single(0), Fine: Single(0)},
			{Coarse: Single(0), Mid: SweepRange{Start: 0, End: 40}, Fine: Single(0)},
			{Coarse: Single(0), Mid: Single(0), Fine: SweepRange{Start: 255, End: 255}},
		} {
			assert.False(t, ValidSweepConfig(s), "%s", s)
		}
	})

	t.Run("Constructor Reports Instead Of Panicking", func(t *testing.T) {
		_, err := NewSweepConfig(5, 2, 0, 31, 0, 31)
		assert.ErrorIs(t, err, ErrInvalidSweepRange)
		_, err = NewSweepConfig(0, 31, -1, 4, 0, 31)
		assert.ErrorIs(t, err, ErrInvalidSweepRange)
		_, err = NewSweepConfig(0, 31, 0, 31, 0, 300)
		assert.ErrorIs(t, err, ErrInvalidSweepRange)
	})
}

func TestInitForSweep(t *testing.T) {
	assert.Equal(t, Code{3, 10, 2}, InitForSweep(mustSweep(t, 3, 5, 10, 20, 2, 9)))
	// single coarse starts at the mid center
	assert.Equal(t, Code{23, 15, 0}, InitForSweep(mustSweep(t, 23, 23, 10, 20, 0, 24)))
	assert.Equal(t, Code{23, 15, 0}, InitForSweep(mustSweep(t, 23, 23, 10, 21, 0, 24)))
}

func TestAdvanceFine(t *testing.T) {
	t.Run("Fine Steps First", func(t *testing.T) {
		s := mustSweep(t, 1, 2, 0, 1, 0, 1)
		assert.Equal(t, Code{1, 0, 1}, AdvanceFine(Code{1, 0, 0}, s))
		assert.Equal(t, Code{1, 1, 0}, AdvanceFine(Code{1, 0, 1}, s))
		assert.Equal(t, Code{2, 0, 0}, AdvanceFine(Code{1, 1, 1}, s))
	})

	t.Run("Coarse Wraps To Start", func(t *testing.T) {
		s := mustSweep(t, 1, 2, 0, 1, 0, 1)
		assert.Equal(t, Code{1, 0, 0}, AdvanceFine(Code{2, 1, 1}, s))
	})

	t.Run("Mid Walks Outward From Center", func(t *testing.T) {
		s := mustSweep(t, 23, 23, 27, 31, 0, 0)
		var mids []uint8
		c := InitForSweep(s)
		for i := 0; i < 6; i++ {
			mids = append(mids, c.Mid)
			c = AdvanceFine(c, s)
		}
		assert.Equal(t, []uint8{29, 28, 30, 27, 31, 29}, mids)
	})

	t.Run("Uneven Walk Skips Exhausted Side", func(t *testing.T) {
		s := mustSweep(t, 23, 23, 26, 29, 0, 0)
		var mids []uint8
		c := InitForSweep(s)
		for i := 0; i < 5; i++ {
			mids = append(mids, c.Mid)
			c = AdvanceFine(c, s)
		}
		assert.Equal(t, []uint8{27, 26, 28, 29, 27}, mids)
	})

	t.Run("Mid Outside Window Snaps To Center", func(t *testing.T) {
		s := mustSweep(t, 23, 23, 10, 12, 0, 0)
		assert.Equal(t, Code{23, 11, 0}, AdvanceFine(Code{23, 20, 0}, s))
	})
}

func TestAtEnd(t *testing.T) {
	s := mustSweep(t, 1, 2, 3, 4, 5, 6)

	assert.False(t, AtEnd(Code{1, 4, 6}, s))
	assert.False(t, AtEnd(Code{2, 4, 5}, s))
	assert.True(t, AtEnd(Code{2, 4, 6}, s))
	assert.True(t, AtEnd(Code{2, 5, 0}, s))
	assert.True(t, AtEnd(Code{3, 0, 0}, s))
}

func TestSweepTermination(t *testing.T) {
	configs := []SweepConfig{
		mustSweep(t, 0, 31, 29, 29, 0, 24),
		mustSweep(t, 23, 23, 26, 30, 0, 24),
		mustSweep(t, 23, 23, 28, 30, 0, 24),
		mustSweep(t, 22, 24, 0, 31, 0, 31),
		mustSweep(t, 7, 7, 7, 7, 7, 7),
	}

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		bound := func() (int, int) {
			a, b := rng.Intn(codeSpan), rng.Intn(codeSpan)
			if a > b {
				a, b = b, a
			}
			return a, b
		}
		cs, ce := bound()
		ms, me := bound()
		fs, fe := bound()
		if rng.Intn(2) == 0 {
			ce = cs
		}
		configs = append(configs, mustSweep(t, cs, ce, ms, me, fs, fe))
	}

	for _, s := range configs {
		limit := s.NumCodes()
		seen := make(map[Code]bool, limit)
		c := InitForSweep(s)
		steps := 0
		for !AtEnd(c, s) {
			if !s.Contains(c) {
				t.Fatalf("Sweep %s left its window at %s", s, c)
			}
			if seen[c] {
				t.Fatalf("Sweep %s revisited %s before ending", s, c)
			}
			seen[c] = true
			c = AdvanceFine(c, s)
			steps++
			if steps > limit {
				t.Fatalf("Sweep %s did not end within %d steps", s, limit)
			}
		}
		assert.True(t, s.Contains(c), "final code %s outside %s", c, s)
	}
}

func TestPlan(t *testing.T) {
	s := mustSweep(t, 23, 23, 27, 31, 0, 1)

	codes, err := Plan(s, 0)
	require.NoError(t, err)
	require.Len(t, codes, s.NumCodes())
	assert.Equal(t, Code{23, 29, 0}, codes[0])
	assert.Equal(t, Code{23, 31, 1}, codes[len(codes)-1])

	codes, err = Plan(s, 3)
	require.NoError(t, err)
	assert.Len(t, codes, 3)

	_, err = Plan(SweepConfig{Coarse: SweepRange{Start: 5, End: 2}}, 0)
	assert.ErrorIs(t, err, ErrInvalidSweepConfig)
}
