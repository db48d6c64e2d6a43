package feedback

// IfHistory is a fixed capacity ring of IF samples used for a moving average
type IfHistory struct {
	samples []uint32
	cursor  int
	full    bool
}

// NewIfHistory creates an empty history holding capacity samples
func NewIfHistory(capacity int) *IfHistory {
	return &IfHistory{samples: make([]uint32, capacity)}
}

// Add writes a sample over the oldest one
func (h *IfHistory) Add(sample uint32) {
	h.samples[h.cursor] = sample
	h.cursor = (h.cursor + 1) % len(h.samples)
	if h.cursor == 0 {
		h.full = true
	}
}

// Len returns the number of valid samples
func (h *IfHistory) Len() int {
	if h.full {
		return len(h.samples)
	}
	return h.cursor
}

// Cap returns the capacity
func (h *IfHistory) Cap() int { return len(h.samples) }

// Full reports whether the cursor has wrapped at least once
func (h *IfHistory) Full() bool { return h.full }

// Mean returns the integer mean of the valid samples, zero when empty
func (h *IfHistory) Mean() uint32 {
	n := h.Len()
	if n == 0 {
		return 0
	}
	var sum uint64
	for _, s := range h.samples[:n] {
		sum += uint64(s)
	}
	return uint32(sum / uint64(n))
}

// Reset empties the history
func (h *IfHistory) Reset() {
	h.cursor = 0
	h.full = false
}
