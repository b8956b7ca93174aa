package synth

import (
	"math"
	"testing"
)

func energy(samples []float32) float64 {
	var e float64
	for _, s := range samples {
		e += float64(s) * float64(s)
	}
	return e
}

func TestSilentUntilGated(t *testing.T) {
	g := New(44100, DefaultParams())
	g.SetFrequency(0, 440)
	buf := make([]float32, 4410)
	g.RenderBlock(buf)
	if e := energy(buf); e != 0 {
		t.Fatalf("ungated graph produced energy %v", e)
	}
}

func TestGateProducesSound(t *testing.T) {
	g := New(44100, DefaultParams())
	g.SetFrequency(2, 440)
	g.SetGate(2, 1)
	buf := make([]float32, 4410)
	g.RenderBlock(buf)
	if e := energy(buf); e == 0 {
		t.Fatalf("gated voice produced no energy")
	}
	for _, s := range buf {
		if s < -1 || s > 1 || math.IsNaN(float64(s)) {
			t.Fatalf("sample out of range: %v", s)
		}
	}
}

func TestReleaseDecaysToSilence(t *testing.T) {
	params := DefaultParams()
	params.ReleaseSec = 0.05
	params.FilterCutoff = 0 // disable the post stage so silence is exact
	g := New(44100, params)
	g.SetFrequency(0, 440)
	g.SetGate(0, 1)
	buf := make([]float32, 44100/2)
	g.RenderBlock(buf)
	g.SetGate(0, 0)
	// Render well past the release time.
	g.RenderBlock(make([]float32, 44100/4))
	if n := g.ActiveVoiceCount(); n != 0 {
		t.Fatalf("%d voices still active after release", n)
	}
	tail := make([]float32, 4410)
	g.RenderBlock(tail)
	if e := energy(tail); e != 0 {
		t.Fatalf("released voice still sounding: energy %v", e)
	}
}

func TestActiveVoiceCountTracksGates(t *testing.T) {
	g := New(44100, DefaultParams())
	if n := g.ActiveVoiceCount(); n != 0 {
		t.Fatalf("fresh graph reports %d active voices", n)
	}
	g.SetFrequency(0, 261.63)
	g.SetFrequency(3, 329.63)
	g.SetGate(0, 1)
	g.SetGate(3, 1)
	g.RenderBlock(make([]float32, 64))
	if n := g.ActiveVoiceCount(); n != 2 {
		t.Fatalf("active voices = %d, want 2", n)
	}
}

func TestFrequencyControlShiftsPitch(t *testing.T) {
	// Count zero crossings over one second for two frequencies.
	count := func(hz float32) int {
		g := New(44100, Params{
			VoiceCount: 1, AttackSec: 0.0001, DecaySec: 0.01,
			SustainLvl: 1, ReleaseSec: 0.01, VoiceGain: 1, MasterGain: 1,
		})
		g.SetFrequency(0, hz)
		g.SetGate(0, 1)
		buf := make([]float32, 44100)
		g.RenderBlock(buf)
		n := 0
		for i := 1; i < len(buf); i++ {
			if buf[i-1] < 0 && buf[i] >= 0 {
				n++
			}
		}
		return n
	}
	low, high := count(220), count(440)
	if low < 210 || low > 230 {
		t.Fatalf("220 Hz voice crossed zero %d times", low)
	}
	if high < 430 || high > 450 {
		t.Fatalf("440 Hz voice crossed zero %d times", high)
	}
}

func TestRenderBlockMatchesSingleSamplePath(t *testing.T) {
	mk := func() *Graph {
		g := New(44100, DefaultParams())
		g.SetFrequency(0, 440)
		g.SetGate(0, 1)
		return g
	}
	a, b := mk(), mk()
	block := make([]float32, 512)
	a.RenderBlock(block)
	for i := range block {
		if s := b.RenderSample(); s != block[i] {
			t.Fatalf("sample %d: block %v, single %v", i, block[i], s)
		}
	}
}

func TestRetriggerRestartsAttackWithoutClick(t *testing.T) {
	g := New(44100, DefaultParams())
	g.SetFrequency(0, 440)
	g.SetGate(0, 1)
	g.RenderBlock(make([]float32, 44100/4)) // settle into sustain
	g.SetGate(0, 0)
	g.RenderBlock(make([]float32, 64)) // partial release
	g.SetGate(0, 1)
	g.RenderSample()
	if g.voices[0].state != envAttack && g.voices[0].state != envDecay {
		t.Fatalf("retrigger left envelope in state %d", g.voices[0].state)
	}
}
