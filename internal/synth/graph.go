package synth

import (
	"math"
	"sync/atomic"

	"github.com/polykeeb/polykeeb-go/internal/effects"
)

type Params struct {
	VoiceCount      int
	AttackSec       float64
	DecaySec        float64
	SustainLvl      float64
	ReleaseSec      float64
	VoiceGain       float64
	FilterCutoff    float64 // shared post-filter center in Hz (0 = disabled)
	FilterResonance float64
	MasterGain      float64
}

func DefaultParams() Params {
	return Params{
		VoiceCount:      7,
		AttackSec:       0.005,
		DecaySec:        0.12,
		SustainLvl:      0.75,
		ReleaseSec:      0.2,
		VoiceGain:       0.2,
		FilterCutoff:    12000,
		FilterResonance: 0.707,
		MasterGain:      1.0,
	}
}

type envState int

const (
	envOff envState = iota
	envAttack
	envDecay
	envSustain
	envRelease
)

// cell is an atomically updated float32 control point. The allocator (or
// facade) is the sole writer, the render path the sole reader.
type cell struct {
	bits atomic.Uint32
}

func (c *cell) store(v float32) { c.bits.Store(math.Float32bits(v)) }
func (c *cell) load() float32   { return math.Float32frombits(c.bits.Load()) }

type voiceUnit struct {
	freq     cell
	gate     cell
	lastGate float32
	phase    float64
	env      float64
	state    envState
}

// Graph is a fixed pool of saw-oscillator voices, each shaped by an ADSR
// envelope, summed and passed through a shared low-pass post stage. It
// exposes per-voice frequency and gate control cells plus the shared filter
// cutoff, and renders mono samples on demand.
type Graph struct {
	sampleRate float64
	params     Params
	voices     []voiceUnit
	post       *effects.SVF
	tail       *effects.Chain
	masterGain uint64
}

func New(sampleRate int, params Params) *Graph {
	if params.VoiceCount <= 0 {
		params.VoiceCount = 7
	}
	g := &Graph{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voiceUnit, params.VoiceCount),
		masterGain: math.Float64bits(params.MasterGain),
	}
	if params.FilterCutoff > 0 && params.FilterCutoff < float64(sampleRate)/2 {
		g.post = effects.NewSVF(sampleRate, float32(params.FilterCutoff), params.FilterResonance)
	}
	return g
}

func (g *Graph) VoiceCount() int { return len(g.voices) }

// SetFrequency updates one voice's playback frequency control cell.
func (g *Graph) SetFrequency(voice int, hz float32) {
	g.voices[voice].freq.store(hz)
}

// SetGate drives one voice's gate control cell: a rising edge starts the
// envelope attack, a falling edge its release.
func (g *Graph) SetGate(voice int, level float32) {
	g.voices[voice].gate.store(level)
}

// SetFilterCutoff retunes the shared post-filter center frequency.
func (g *Graph) SetFilterCutoff(hz float32) {
	if g.post != nil {
		g.post.SetCutoff(hz)
	}
}

// SetTail installs an optional post-filter effect chain (chorus, delay).
// Call before rendering starts.
func (g *Graph) SetTail(tail *effects.Chain) {
	g.tail = tail
}

func (g *Graph) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&g.masterGain, math.Float64bits(gain))
}

func (g *Graph) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.masterGain))
}

// ActiveVoiceCount returns the number of voices still sounding, including
// release tails. Meaningful only from the rendering goroutine.
func (g *Graph) ActiveVoiceCount() int {
	n := 0
	for i := range g.voices {
		if g.voices[i].state != envOff {
			n++
		}
	}
	return n
}

// RenderSample produces one mono sample in [-1, 1].
func (g *Graph) RenderSample() float32 {
	var sum float64
	for i := range g.voices {
		sum += g.renderVoice(&g.voices[i])
	}
	out := float32(clamp(sum*g.masterGainValue(), -1, 1))
	if g.post != nil {
		out = g.post.Process(out)
	}
	if g.tail != nil {
		out = g.tail.Process(out)
	}
	return out
}

// RenderBlock fills dst with consecutive mono samples.
func (g *Graph) RenderBlock(dst []float32) {
	for i := range dst {
		dst[i] = g.RenderSample()
	}
}

func (g *Graph) renderVoice(v *voiceUnit) float64 {
	gate := v.gate.load()
	if gate != v.lastGate {
		if gate >= 0.5 {
			v.state = envAttack
		} else if v.state != envOff {
			v.state = envRelease
		}
		v.lastGate = gate
	}
	if v.state == envOff {
		return 0
	}
	g.advanceEnv(v)
	f := float64(v.freq.load())
	inc := f / g.sampleRate
	v.phase += inc
	if v.phase >= 1 {
		v.phase -= 1
	}
	return sawSample(v.phase, inc) * v.env * g.params.VoiceGain
}

func (g *Graph) advanceEnv(v *voiceUnit) {
	p := &g.params
	switch v.state {
	case envAttack:
		step := 1.0 / (p.AttackSec * g.sampleRate)
		if step <= 0 {
			step = 1
		}
		v.env += step
		if v.env >= 1 {
			v.env = 1
			v.state = envDecay
		}
	case envDecay:
		step := (1 - p.SustainLvl) / (p.DecaySec * g.sampleRate)
		if step <= 0 {
			step = 1
		}
		v.env -= step
		if v.env <= p.SustainLvl {
			v.env = p.SustainLvl
			v.state = envSustain
		}
	case envSustain:
	case envRelease:
		step := p.SustainLvl / (p.ReleaseSec * g.sampleRate)
		if step <= 0 {
			step = 1
		}
		v.env -= step
		if v.env <= 0.0001 {
			v.env = 0
			v.state = envOff
		}
	case envOff:
		v.env = 0
	}
}

// sawSample evaluates a polyBLEP-corrected sawtooth at phase in [0, 1).
func sawSample(phase, inc float64) float64 {
	return 2*phase - 1 - polyBLEP(phase, inc)
}

// polyBLEP smooths the discontinuity of a naive saw around the phase wrap.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
