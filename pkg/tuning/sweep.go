package tuning

import "fmt"

// SweepRange is an inclusive range of codes on one level
type SweepRange struct {
	Start uint8 `json:"start" yaml:"start"`
	End   uint8 `json:"end" yaml:"end"`
}

// Single returns a range covering exactly one code
func Single(v uint8) SweepRange {
	return SweepRange{Start: v, End: v}
}

// Valid reports whether both bounds lie in the code span and Start <= End
func (r SweepRange) Valid() bool {
	return r.Start <= MaxCode && r.End <= MaxCode && r.Start <= r.End
}

// Contains reports whether v lies in the range
func (r SweepRange) Contains(v uint8) bool {
	return v >= r.Start && v <= r.End
}

// Size returns the number of codes in the range
func (r SweepRange) Size() int {
	if r.End < r.Start {
		return 0
	}
	return int(r.End) - int(r.Start) + 1
}

// Center returns the lower midpoint of the range
func (r SweepRange) Center() uint8 {
	return uint8((int(r.Start) + int(r.End)) / 2)
}

func (r SweepRange) String() string {
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

// SweepConfig bounds a sweep on every level
type SweepConfig struct {
	Coarse SweepRange `json:"coarse" yaml:"coarse"`
	Mid    SweepRange `json:"mid" yaml:"mid"`
	Fine   SweepRange `json:"fine" yaml:"fine"`
}

// NewSweepConfig builds a validated sweep config from inclusive int bounds
// given as coarse, mid and fine start/end pairs.
func NewSweepConfig(coarseStart, coarseEnd, midStart, midEnd, fineStart, fineEnd int) (SweepConfig, error) {
	bounds := []struct {
		name       string
		start, end int
	}{
		{"coarse", coarseStart, coarseEnd},
		{"mid", midStart, midEnd},
		{"fine", fineStart, fineEnd},
	}
	for _, b := range bounds {
		if b.start < MinCode || b.start > MaxCode || b.end < MinCode || b.end > MaxCode || b.start > b.end {
			return SweepConfig{}, fmt.Errorf("%w: %s %d..%d", ErrInvalidSweepRange, b.name, b.start, b.end)
		}
	}
	return SweepConfig{
		Coarse: SweepRange{Start: uint8(coarseStart), End: uint8(coarseEnd)},
		Mid:    SweepRange{Start: uint8(midStart), End: uint8(midEnd)},
		Fine:   SweepRange{Start: uint8(fineStart), End: uint8(fineEnd)},
	}, nil
}

// Validate returns an error wrapping ErrInvalidSweepConfig naming the first
// invalid level.
func (s SweepConfig) Validate() error {
	if !s.Coarse.Valid() {
		return fmt.Errorf("%w: coarse %s", ErrInvalidSweepConfig, s.Coarse)
	}
	if !s.Mid.Valid() {
		return fmt.Errorf("%w: mid %s", ErrInvalidSweepConfig, s.Mid)
	}
	if !s.Fine.Valid() {
		return fmt.Errorf("%w: fine %s", ErrInvalidSweepConfig, s.Fine)
	}
	return nil
}

// ValidSweepConfig reports whether the config passes Validate
func ValidSweepConfig(s SweepConfig) bool {
	return s.Validate() == nil
}

// NumCodes returns the number of distinct codes the sweep visits
func (s SweepConfig) NumCodes() int {
	return s.Coarse.Size() * s.Mid.Size() * s.Fine.Size()
}

// Contains reports whether c lies inside the sweep window
func (s SweepConfig) Contains(c Code) bool {
	return s.Coarse.Contains(c.Coarse) && s.Mid.Contains(c.Mid) && s.Fine.Contains(c.Fine)
}

func (s SweepConfig) String() string {
	return fmt.Sprintf("coarse=%s mid=%s fine=%s", s.Coarse, s.Mid, s.Fine)
}

// InitForSweep returns the first candidate of a sweep. A sweep pinned to a
// single coarse code starts at the center of its mid range.
func InitForSweep(s SweepConfig) Code {
	c := Code{Coarse: s.Coarse.Start, Mid: s.Mid.Start, Fine: s.Fine.Start}
	if s.Coarse.Size() == 1 {
		c.Mid = s.Mid.Center()
	}
	return c
}

// AdvanceFine returns the next candidate after c. Fine steps first; when it
// passes Fine.End the mid level advances.
func AdvanceFine(c Code, s SweepConfig) Code {
	if c.Fine < s.Fine.Start {
		c.Fine = s.Fine.Start
		return c
	}
	c.Fine++
	if c.Fine > s.Fine.End {
		c = advanceMid(c, s)
	}
	return c
}

func advanceMid(c Code, s SweepConfig) Code {
	c.Fine = s.Fine.Start
	if s.Coarse.Size() == 1 {
		c.Coarse = s.Coarse.Start
		c.Mid = nextOutward(c.Mid, s.Mid)
		return c
	}
	c.Mid++
	if c.Mid > s.Mid.End {
		c.Mid = s.Mid.Start
		c.Coarse++
		if c.Coarse > s.Coarse.End {
			c.Coarse = s.Coarse.Start
		}
	}
	return c
}

// nextOutward walks center, center-1, center+1, center-2, ... skipping
// values outside r, and snaps back to center once both sides are used up.
// The last value of a walk is always r.End.
func nextOutward(mid uint8, r SweepRange) uint8 {
	center := int(r.Center())
	if !r.Contains(mid) {
		return uint8(center)
	}
	reach := center - int(r.Start)
	if up := int(r.End) - center; up > reach {
		reach = up
	}
	for i := walkIndex(int(mid)-center) + 1; i <= 2*reach; i++ {
		v := center + walkOffset(i)
		if v >= int(r.Start) && v <= int(r.End) {
			return uint8(v)
		}
	}
	return uint8(center)
}

// walkIndex is the position of offset d in the sequence 0, -1, +1, -2, +2, ...
func walkIndex(d int) int {
	switch {
	case d == 0:
		return 0
	case d < 0:
		return -2*d - 1
	default:
		return 2 * d
	}
}

func walkOffset(i int) int {
	if i%2 == 1 {
		return -(i + 1) / 2
	}
	return i / 2
}

// AtEnd reports whether c is the last candidate of the sweep or beyond it
func AtEnd(c Code, s SweepConfig) bool {
	return c.Coarse > s.Coarse.End ||
		(c.Coarse == s.Coarse.End &&
			(c.Mid > s.Mid.End ||
				(c.Mid == s.Mid.End && c.Fine >= s.Fine.End)))
}

// Plan lists the candidates of a sweep in visiting order, from InitForSweep
// up to and including the first code at the end of the sweep. limit caps the
// result; zero or negative means no cap beyond NumCodes.
func Plan(s SweepConfig, limit int) ([]Code, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	max := s.NumCodes()
	if limit > 0 && limit < max {
		max = limit
	}
	codes := make([]Code, 0, max)
	c := InitForSweep(s)
	for len(codes) < max {
		codes = append(codes, c)
		if AtEnd(c, s) {
			break
		}
		c = AdvanceFine(c, s)
	}
	return codes, nil
}
