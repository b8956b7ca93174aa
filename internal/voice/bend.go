package voice

import (
	"fmt"
	"math"
	"sync/atomic"
)

// BendRange is the legal pitch-bend input domain in semitones, both ways.
const BendRange = 12.0

// bendSlope is the per-semitone slope of the linearized bend ratio. True
// equal temperament would be 2^(semitones/12); the linear form
// 1 + semitones*ln2/12 stays within 0.2% over one semitone and keeps the
// transcendental out of the audio path.
const bendSlope = float32(math.Ln2 / 12)

// Bend holds the shared pitch-bend ratio as an atomic float32 cell so a
// control goroutine can update it while the audio goroutine reads it.
type Bend struct {
	ratio atomic.Uint32
}

func NewBend() *Bend {
	b := &Bend{}
	b.ratio.Store(math.Float32bits(1))
	return b
}

// Ratio returns the current multiplicative bend ratio (1.0 = no bend).
func (b *Bend) Ratio() float32 {
	return math.Float32frombits(b.ratio.Load())
}

// Set validates semitones against the supported range and, when legal,
// stores and returns the new ratio. An out-of-range value leaves the
// current ratio untouched.
func (b *Bend) Set(semitones float32) (float32, error) {
	if semitones < -BendRange || semitones > BendRange ||
		semitones != semitones { // reject NaN
		return 0, fmt.Errorf("pitch bend %v semitones outside ±%v", semitones, BendRange)
	}
	ratio := 1 + semitones*bendSlope
	b.ratio.Store(math.Float32bits(ratio))
	return ratio, nil
}
