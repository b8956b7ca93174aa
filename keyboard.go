package polykeeb

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polykeeb/polykeeb-go/internal/audio"
	"github.com/polykeeb/polykeeb-go/internal/effects"
	"github.com/polykeeb/polykeeb-go/internal/scan"
	"github.com/polykeeb/polykeeb-go/internal/stream"
	"github.com/polykeeb/polykeeb-go/internal/synth"
	"github.com/polykeeb/polykeeb-go/internal/voice"
)

// Defaults mirror the hardware build: a 12-key chromatic row multiplexed
// across 4 octave lines, 7 voices, 480-frame buffers, a 250µs scan interval.
const (
	DefaultKeyCount     = 12
	DefaultOctaveCount  = 4
	DefaultVoiceCount   = 7
	DefaultBufferSize   = 480
	DefaultScanInterval = 250 * time.Microsecond
)

type Option func(*config)

type config struct {
	keyCount     int
	octaveCount  int
	bufferSize   int
	scanInterval time.Duration
	synthParams  synth.Params
	tail         []func(sampleRate int) effects.Processor
	sink         stream.Sink
	sampleTap    func([]float32)
	fillObserver func(time.Duration)
}

func defaultConfig() config {
	params := synth.DefaultParams()
	params.VoiceCount = DefaultVoiceCount
	return config{
		keyCount:     DefaultKeyCount,
		octaveCount:  DefaultOctaveCount,
		bufferSize:   DefaultBufferSize,
		scanInterval: DefaultScanInterval,
		synthParams:  params,
	}
}

func WithKeyCount(n int) Option { return func(c *config) { c.keyCount = n } }

func WithOctaveCount(n int) Option { return func(c *config) { c.octaveCount = n } }

func WithVoiceCount(n int) Option {
	return func(c *config) { c.synthParams.VoiceCount = n }
}

func WithBufferSize(n int) Option { return func(c *config) { c.bufferSize = n } }

func WithScanInterval(d time.Duration) Option {
	return func(c *config) { c.scanInterval = d }
}

// WithSynthParams replaces the whole synthesis parameter set (envelope
// timing, voice gain, post-filter tuning).
func WithSynthParams(p synth.Params) Option {
	return func(c *config) { c.synthParams = p }
}

// WithChorus appends a chorus stage to the post-filter tail. delayMs is the
// base delay, depthMs and rateHz shape the modulation, wet the mix.
func WithChorus(delayMs, feedback, depthMs, rateHz, wet float32) Option {
	return func(c *config) {
		c.tail = append(c.tail, func(sampleRate int) effects.Processor {
			return effects.NewChorus(sampleRate, delayMs, feedback, depthMs, rateHz, wet)
		})
	}
}

// WithDelay appends a feedback delay stage to the post-filter tail.
func WithDelay(delayMs float64, feedback, wet float32) Option {
	return func(c *config) {
		c.tail = append(c.tail, func(sampleRate int) effects.Processor {
			return effects.NewDelay(sampleRate, delayMs, feedback, wet)
		})
	}
}

// WithSink substitutes the audio output device. Without it Start opens the
// system audio device.
func WithSink(s stream.Sink) Option { return func(c *config) { c.sink = s } }

// WithSampleTap installs a callback invoked with each rendered sample block.
// The callback runs on the audio goroutine; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(c *config) { c.sampleTap = tap }
}

// WithFillObserver reports the wall time spent filling each back buffer, for
// checking the fill budget against the buffer drain time.
func WithFillObserver(f func(time.Duration)) Option {
	return func(c *config) { c.fillObserver = f }
}

// buildTail constructs the configured post-filter effect stages once the
// sample rate is known. Returns nil when no stage was requested.
func (c *config) buildTail(sampleRate int) *effects.Chain {
	if len(c.tail) == 0 {
		return nil
	}
	stages := make([]effects.Processor, len(c.tail))
	for i, build := range c.tail {
		stages[i] = build(sampleRate)
	}
	return effects.NewChain(stages...)
}

// Keyboard wires the matrix scanner, voice allocator, synthesis graph and
// sample stream producer into a playable instrument. One audio goroutine owns
// the voice pool and buffers; the only control values crossing goroutines
// (pitch bend, filter cutoff, master gain) are atomic cells.
type Keyboard struct {
	mu         sync.Mutex
	cfg        config
	sampleRate int
	graph      *synth.Graph
	bend       *voice.Bend
	alloc      *voice.Allocator
	scanner    *scan.Scanner
	sink       stream.Sink
	ownedSink  *audio.OtoSink
	bendDirty  atomic.Bool
	baseGain   float64
	volume     float64

	stop    chan struct{}
	done    chan struct{}
	runErr  error
	running bool
}

// New builds a keyboard over the given matrix boundary. gate may be nil when
// octaveCount is 1 (unmultiplexed).
func New(sampleRate int, pins scan.PinReader, gate scan.OctaveGate, opts ...Option) (*Keyboard, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	if pins == nil {
		return nil, errors.New("pin reader is required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.keyCount < 1 || cfg.keyCount > DefaultKeyCount {
		return nil, errors.New("key count must be between 1 and 12")
	}
	if cfg.octaveCount < 1 || cfg.octaveCount > 8 {
		return nil, errors.New("octave count must be between 1 and 8")
	}
	if cfg.octaveCount > 1 && gate == nil {
		return nil, errors.New("octave gate is required for a multiplexed matrix")
	}
	graph := synth.New(sampleRate, cfg.synthParams)
	if tail := cfg.buildTail(sampleRate); tail != nil {
		graph.SetTail(tail)
	}
	bend := voice.NewBend()
	k := &Keyboard{
		cfg:        cfg,
		sampleRate: sampleRate,
		graph:      graph,
		bend:       bend,
		alloc:      voice.NewAllocator(graph, bend, graph.VoiceCount()),
		scanner:    scan.New(pins, gate, cfg.keyCount, cfg.octaveCount),
		sink:       cfg.sink,
		baseGain:   cfg.synthParams.MasterGain,
		volume:     1,
	}
	return k, nil
}

// Start opens the sink if none was configured and launches the audio
// production loop. It is an error to start a keyboard twice without an
// intervening Stop.
func (k *Keyboard) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.running {
		return errors.New("keyboard already started")
	}
	if k.sink == nil {
		s, err := audio.NewOtoSink(k.sampleRate)
		if err != nil {
			return err
		}
		k.sink = s
		k.ownedSink = s
	}

	events := make([]scan.Event, 0, k.cfg.keyCount*k.cfg.octaveCount)
	producer, err := stream.NewProducer(k.sink, k.source(), stream.Config{
		BufferSize:   k.cfg.bufferSize,
		ScanInterval: k.cfg.scanInterval,
		Scan: func() {
			events = k.scanner.Scan(events[:0])
			k.alloc.Apply(events)
		},
		FillObserver: k.cfg.fillObserver,
	})
	if err != nil {
		return err
	}

	k.stop = make(chan struct{})
	k.done = make(chan struct{})
	k.running = true
	stop, done := k.stop, k.done
	go func() {
		err := producer.Run(stop)
		k.mu.Lock()
		k.runErr = err
		k.mu.Unlock()
		close(done)
	}()
	return nil
}

// source wraps the graph so that pending pitch-bend reapplication and the
// sample tap both run on the audio goroutine.
func (k *Keyboard) source() stream.Source {
	return &tapSource{k: k}
}

type tapSource struct {
	k *Keyboard
}

func (s *tapSource) RenderBlock(dst []float32) {
	if s.k.bendDirty.Swap(false) {
		s.k.alloc.ReapplyBend()
	}
	s.k.graph.RenderBlock(dst)
	if tap := s.k.cfg.sampleTap; tap != nil {
		tap(dst)
	}
}

// Stop halts the audio loop, closes an owned sink and returns the loop's
// error, if any.
func (k *Keyboard) Stop() error {
	k.mu.Lock()
	if !k.running {
		k.mu.Unlock()
		return nil
	}
	stop, done := k.stop, k.done
	k.mu.Unlock()

	close(stop)
	<-done

	k.mu.Lock()
	defer k.mu.Unlock()
	k.running = false
	if k.ownedSink != nil {
		k.ownedSink.Close()
		k.ownedSink = nil
		k.sink = nil
	}
	return k.runErr
}

// Wait blocks until the audio loop exits (via Stop or a sink failure).
func (k *Keyboard) Wait() {
	k.mu.Lock()
	done := k.done
	k.mu.Unlock()
	if done != nil {
		<-done
	}
}

// SetPitchBend validates semitones against the supported ±12 range and, when
// legal, stores the new ratio. Assigned voices are retuned on the audio
// goroutine at the start of the next buffer fill; voices assigned in the
// meantime already pick up the new ratio.
func (k *Keyboard) SetPitchBend(semitones float32) error {
	if _, err := k.bend.Set(semitones); err != nil {
		return err
	}
	k.bendDirty.Store(true)
	return nil
}

// PitchBendRatio returns the bend ratio currently applied (1.0 = no bend).
func (k *Keyboard) PitchBendRatio() float32 {
	return k.bend.Ratio()
}

// SetFilterCutoff retunes the shared post-filter center frequency.
func (k *Keyboard) SetFilterCutoff(hz float32) {
	k.graph.SetFilterCutoff(hz)
}

// SetMasterVolume sets a runtime volume scalar. 1.0 is default.
func (k *Keyboard) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.volume = volume
	k.graph.SetMasterGain(k.baseGain * k.volume)
}

func (k *Keyboard) MasterVolume() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.volume
}

// VoiceCount reports the size of the fixed voice pool.
func (k *Keyboard) VoiceCount() int {
	return k.graph.VoiceCount()
}
