package effects

import (
	"math"
	"sync/atomic"
)

// SVF is a topology-preserving-transform state variable filter used in
// lowpass mode as the shared post stage of the synthesis graph. The cutoff
// is an atomic cell so a control goroutine can retune it while the audio
// goroutine runs; the coefficient is recomputed lazily on change.
type SVF struct {
	sampleRate float64
	cutoff     atomic.Uint32 // float32 bits, Hz
	lastCutoff float32
	g          float64 // tan(pi * cutoff/sampleRate)
	k          float64 // 1/Q
	ic1eq      float64
	ic2eq      float64
}

// NewSVF builds a lowpass SVF. resonance is Q; values below a small epsilon
// are clamped to keep the 1/Q term finite.
func NewSVF(sampleRate int, cutoffHz float32, resonance float64) *SVF {
	if resonance < 1e-6 {
		resonance = 1e-6
	}
	f := &SVF{
		sampleRate: float64(sampleRate),
		k:          1 / resonance,
	}
	f.cutoff.Store(math.Float32bits(cutoffHz))
	f.retune(cutoffHz)
	return f
}

// SetCutoff retunes the filter center. Safe to call from any goroutine.
func (f *SVF) SetCutoff(hz float32) {
	f.cutoff.Store(math.Float32bits(hz))
}

// Cutoff returns the current center frequency in Hz.
func (f *SVF) Cutoff() float32 {
	return math.Float32frombits(f.cutoff.Load())
}

func (f *SVF) retune(hz float32) {
	ratio := float64(hz) / f.sampleRate
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 0.499 {
		ratio = 0.499
	}
	f.g = math.Tan(math.Pi * ratio)
	f.lastCutoff = hz
}

func (f *SVF) Process(x float32) float32 {
	if hz := f.Cutoff(); hz != f.lastCutoff {
		f.retune(hz)
	}
	g, k := f.g, f.k
	v0 := float64(x)
	a1 := 1 / (1 + g*(g+k))
	v1 := a1 * (f.ic1eq + g*(v0-f.ic2eq))
	v2 := f.ic2eq + g*v1
	f.ic1eq = 2*v1 - f.ic1eq
	f.ic2eq = 2*v2 - f.ic2eq
	return float32(v2) // lowpass tap
}

func (f *SVF) Reset() {
	f.ic1eq = 0
	f.ic2eq = 0
}
