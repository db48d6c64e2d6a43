package dsp

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// IFMeter estimates the intermediate frequency of a receiver the way the
// mote's zero crossing counter reports it: as a cycle count over a fixed
// measurement window.
type IFMeter struct {
	sampleRate int
	window     []float64
	buffer     []complex128
}

// NewIFMeter creates a meter over windowSize samples taken at sampleRate
func NewIFMeter(sampleRate, windowSize int) (*IFMeter, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if windowSize < 64 {
		return nil, fmt.Errorf("IF window of %d samples is too short", windowSize)
	}

	// Hann window
	window := make([]float64, windowSize)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(windowSize-1)))
	}

	return &IFMeter{
		sampleRate: sampleRate,
		window:     window,
		buffer:     make([]complex128, windowSize),
	}, nil
}

// WindowSize returns the number of samples per measurement
func (m *IFMeter) WindowSize() int {
	return len(m.window)
}

// MaxCount is the highest cycle count the window can resolve
func (m *IFMeter) MaxCount() int {
	return len(m.window)/2 - 1
}

// FrequencyHz converts a cycle count to Hz
func (m *IFMeter) FrequencyHz(count uint32) float64 {
	return float64(count) * float64(m.sampleRate) / float64(len(m.window))
}

// Synthesize fills a measurement window with a tone of count cycles plus
// noise from the given source. noise may be nil.
func (m *IFMeter) Synthesize(count float64, noise func() float64) []float64 {
	n := len(m.window)
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = math.Cos(2 * math.Pi * count * float64(i) / float64(n))
		if noise != nil {
			samples[i] += noise()
		}
	}
	return samples
}

// Measure returns the cycle count of the strongest tone in samples. The
// count is interpolated between FFT bins and rounded.
func (m *IFMeter) Measure(samples []float64) (uint32, error) {
	if len(samples) != len(m.window) {
		return 0, fmt.Errorf("expected %d samples, got %d", len(m.window), len(samples))
	}

	for i, s := range samples {
		m.buffer[i] = complex(s*m.window[i], 0)
	}
	spectrum := fft.FFT(m.buffer)

	// Skip DC
	peak := 1
	peakMag := 0.0
	half := len(spectrum) / 2
	mags := make([]float64, half)
	for i := 0; i < half; i++ {
		mags[i] = cmplx.Abs(spectrum[i])
		if i >= 1 && mags[i] > peakMag {
			peak = i
			peakMag = mags[i]
		}
	}
	if peakMag == 0 {
		return 0, nil
	}

	// Parabolic interpolation around the peak bin
	bin := float64(peak)
	if peak > 1 && peak < half-1 {
		a, b, c := mags[peak-1], mags[peak], mags[peak+1]
		if d := a - 2*b + c; d != 0 {
			bin += 0.5 * (a - c) / d
		}
	}
	return uint32(math.Round(bin)), nil
}
