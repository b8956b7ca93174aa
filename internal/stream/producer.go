package stream

import (
	"errors"
	"time"
)

// Sink accepts fixed-size buffers of signed 16-bit mono samples. Submit
// schedules an asynchronous transfer and returns a channel that is closed
// once the buffer has been fully drained; the caller must not touch the
// buffer until then.
type Sink interface {
	Submit(buf []int16) (<-chan struct{}, error)
}

// Source produces mono float samples in [-1, 1] on demand.
type Source interface {
	RenderBlock(dst []float32)
}

type Config struct {
	BufferSize   int
	ScanInterval time.Duration
	// Scan runs one full matrix scan pass and applies the resulting events.
	// It is invoked at most once per ScanInterval, before a buffer fill, so
	// the fill never waits on scanning.
	Scan func()
	// FillObserver, when set, receives the wall time spent filling each back
	// buffer. Useful for verifying the fill budget against the drain time.
	FillObserver func(elapsed time.Duration)
}

// Producer owns a pair of sample buffers and alternates them between a
// draining transfer and a synchronous fill. Each cycle submits the front
// buffer, fills the back buffer completely, waits for the transfer to finish
// and swaps roles. The two buffers are never written concurrently: the swap
// happens only after the sink signals completion.
type Producer struct {
	sink    Sink
	source  Source
	cfg     Config
	front   []int16
	back    []int16
	scratch []float32
	last    time.Time
	now     func() time.Time
}

func NewProducer(sink Sink, source Source, cfg Config) (*Producer, error) {
	if sink == nil || source == nil {
		return nil, errors.New("sink and source are required")
	}
	if cfg.BufferSize <= 0 {
		return nil, errors.New("buffer size must be positive")
	}
	return &Producer{
		sink:    sink,
		source:  source,
		cfg:     cfg,
		front:   make([]int16, cfg.BufferSize),
		back:    make([]int16, cfg.BufferSize),
		scratch: make([]float32, cfg.BufferSize),
		now:     time.Now,
	}, nil
}

// Run cycles the two-phase state machine until stop is closed or the sink
// fails. The first front buffer is silence; audio begins one buffer later.
func (p *Producer) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		done, err := p.sink.Submit(p.front)
		if err != nil {
			return err
		}

		p.maybeScan()
		p.fill()

		select {
		case <-done:
		case <-stop:
			return nil
		}
		p.front, p.back = p.back, p.front
	}
}

// Cycle runs exactly one submit/fill/wait/swap iteration. Run is Cycle in a
// loop; tests drive Cycle directly.
func (p *Producer) Cycle() error {
	done, err := p.sink.Submit(p.front)
	if err != nil {
		return err
	}
	p.maybeScan()
	p.fill()
	<-done
	p.front, p.back = p.back, p.front
	return nil
}

func (p *Producer) maybeScan() {
	if p.cfg.Scan == nil {
		return
	}
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.cfg.ScanInterval {
		return
	}
	p.last = now
	p.cfg.Scan()
}

func (p *Producer) fill() {
	var start time.Time
	if p.cfg.FillObserver != nil {
		start = p.now()
	}
	p.source.RenderBlock(p.scratch)
	for i, s := range p.scratch {
		p.back[i] = PCM16(s)
	}
	if p.cfg.FillObserver != nil {
		p.cfg.FillObserver(p.now().Sub(start))
	}
}

// PCM16 scales a [-1, 1] float sample by 32767 and truncates. Input outside
// the legal range is clamped first so the conversion stays defined.
func PCM16(s float32) int16 {
	if s > 1 {
		s = 1
	}
	if s < -1 {
		s = -1
	}
	return int16(s * 32767)
}
