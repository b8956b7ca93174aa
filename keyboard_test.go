package polykeeb

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/polykeeb/polykeeb-go/internal/audio"
)

// hostMatrix simulates the key matrix: one uint64 bit per (octave, key),
// written by the test goroutine and read during scans.
type hostMatrix struct {
	bits    atomic.Uint64
	enabled atomic.Int32
}

func newHostMatrix() *hostMatrix {
	m := &hostMatrix{}
	m.enabled.Store(-1)
	return m
}

func (m *hostMatrix) press(key, octave int)   { m.set(key, octave, true) }
func (m *hostMatrix) release(key, octave int) { m.set(key, octave, false) }

func (m *hostMatrix) set(key, octave int, down bool) {
	bit := uint64(1) << uint(octave*DefaultKeyCount+key)
	for {
		old := m.bits.Load()
		next := old | bit
		if !down {
			next = old &^ bit
		}
		if m.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

func (m *hostMatrix) Enable(octave int)  { m.enabled.Store(int32(octave)) }
func (m *hostMatrix) Disable(octave int) { m.enabled.Store(-1) }

func (m *hostMatrix) KeyPressed(key int) bool {
	oct := m.enabled.Load()
	if oct < 0 {
		return false
	}
	bit := uint64(1) << uint(int(oct)*DefaultKeyCount+key)
	return m.bits.Load()&bit != 0
}

func newTestKeyboard(t *testing.T, sink *audio.NullSink, opts ...Option) *Keyboard {
	t.Helper()
	m := newHostMatrix()
	opts = append([]Option{WithSink(sink), WithBufferSize(64)}, opts...)
	k, err := New(44100, m, m, opts...)
	if err != nil {
		t.Fatalf("new keyboard: %v", err)
	}
	return k
}

func TestNewValidatesArguments(t *testing.T) {
	m := newHostMatrix()
	if _, err := New(0, m, m); err == nil {
		t.Fatalf("zero sample rate accepted")
	}
	if _, err := New(44100, nil, m); err == nil {
		t.Fatalf("nil pin reader accepted")
	}
	if _, err := New(44100, m, nil); err == nil {
		t.Fatalf("multiplexed matrix without octave gate accepted")
	}
	if _, err := New(44100, m, nil, WithOctaveCount(1)); err != nil {
		t.Fatalf("unmultiplexed matrix rejected: %v", err)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	sink := &audio.NullSink{Drain: time.Millisecond}
	k := newTestKeyboard(t, sink)
	if err := k.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := k.Start(); err == nil {
		t.Fatalf("second start accepted while running")
	}
	time.Sleep(20 * time.Millisecond)
	if err := k.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if sink.Transfers() == 0 {
		t.Fatalf("no buffers were submitted")
	}
	// Restartable after Stop.
	if err := k.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if err := k.Stop(); err != nil {
		t.Fatalf("stop after restart: %v", err)
	}
}

func TestPressedKeyReachesTheSink(t *testing.T) {
	var heard atomic.Bool
	sink := &audio.NullSink{Drain: time.Millisecond}
	m := newHostMatrix()
	k, err := New(44100, m, m,
		WithSink(sink),
		WithBufferSize(64),
		WithSampleTap(func(block []float32) {
			for _, s := range block {
				if s != 0 {
					heard.Store(true)
					return
				}
			}
		}),
	)
	if err != nil {
		t.Fatalf("new keyboard: %v", err)
	}
	if err := k.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer k.Stop()

	m.press(9, 1) // A5
	deadline := time.After(2 * time.Second)
	for !heard.Load() {
		select {
		case <-deadline:
			t.Fatalf("pressed key never produced sound")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSetPitchBendValidation(t *testing.T) {
	k := newTestKeyboard(t, &audio.NullSink{})
	if err := k.SetPitchBend(12.5); err == nil {
		t.Fatalf("out-of-range bend accepted")
	}
	if got := k.PitchBendRatio(); got != 1 {
		t.Fatalf("rejected bend changed ratio to %v", got)
	}
	if err := k.SetPitchBend(-12); err != nil {
		t.Fatalf("legal bend rejected: %v", err)
	}
	if got := k.PitchBendRatio(); got >= 1 {
		t.Fatalf("downward bend ratio = %v, want < 1", got)
	}
}

func TestMasterVolumeRuntimeAPI(t *testing.T) {
	k := newTestKeyboard(t, &audio.NullSink{})
	if got := k.MasterVolume(); got != 1 {
		t.Fatalf("default master volume = %v, want 1", got)
	}
	k.SetMasterVolume(0.35)
	if got := k.MasterVolume(); got != 0.35 {
		t.Fatalf("master volume = %v, want 0.35", got)
	}
	k.SetMasterVolume(-2)
	if got := k.MasterVolume(); got != 0 {
		t.Fatalf("master volume should clamp to 0, got %v", got)
	}
}

func TestTailOptionsInstallThePostChain(t *testing.T) {
	render := func(opts ...Option) []float32 {
		k := newTestKeyboard(t, &audio.NullSink{}, opts...)
		k.graph.SetFrequency(0, 440)
		k.graph.SetGate(0, 1)
		block := make([]float32, 256)
		k.graph.RenderBlock(block)
		return block
	}
	if blockEnergy(render()) == 0 {
		t.Fatalf("gated voice rendered silence")
	}
	// A fully wet 10ms delay holds the signal inside its line for 441
	// samples, so the first block must come out silent.
	if e := blockEnergy(render(WithDelay(10, 0, 1))); e != 0 {
		t.Fatalf("delay stage not in the render path: energy %v before the delay elapses", e)
	}
	// Likewise a fully wet unmodulated chorus, which reads half its line back.
	if e := blockEnergy(render(WithChorus(20, 0, 0, 0, 1))); e != 0 {
		t.Fatalf("chorus stage not in the render path: energy %v", e)
	}
}

func TestFillObserverRunsUnderLoad(t *testing.T) {
	var fills atomic.Int64
	sink := &audio.NullSink{Drain: time.Millisecond}
	k := newTestKeyboard(t, sink, WithFillObserver(func(time.Duration) {
		fills.Add(1)
	}))
	if err := k.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := k.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if fills.Load() == 0 {
		t.Fatalf("fill observer never ran")
	}
}
