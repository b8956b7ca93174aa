package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// transfer is one in-flight buffer hand-off from the producer to the device.
type transfer struct {
	buf  []int16
	done chan struct{}
}

// OtoSink plays submitted buffers through the system audio device. The oto
// player pulls bytes from Read on its own goroutine; Submit queues a buffer
// and the returned channel closes once Read has consumed all of it, which is
// the moment the producer may reuse that memory. With no buffer queued the
// sink emits silence rather than blocking the device.
type OtoSink struct {
	ctx     *oto.Context
	player  *oto.Player
	pending chan transfer
	cur     *transfer
	off     int

	mu     sync.Mutex
	closed bool
}

var (
	otoOnce       sync.Once
	otoCtx        *oto.Context
	otoCtxErr     error
	otoSampleRate int
)

func sharedContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoSampleRate = sampleRate
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   10 * time.Millisecond,
		})
		if err != nil {
			otoCtxErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoCtxErr != nil {
		return nil, otoCtxErr
	}
	if otoSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", otoSampleRate, sampleRate)
	}
	return otoCtx, nil
}

func NewOtoSink(sampleRate int) (*OtoSink, error) {
	ctx, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	s := &OtoSink{
		ctx:     ctx,
		pending: make(chan transfer, 2),
	}
	s.player = ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Submit schedules buf for playback. The producer's double-buffer discipline
// keeps at most one transfer outstanding.
func (s *OtoSink) Submit(buf []int16) (<-chan struct{}, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errors.New("audio sink closed")
	}
	t := transfer{buf: buf, done: make(chan struct{})}
	select {
	case s.pending <- t:
		return t.done, nil
	default:
		return nil, errors.New("audio sink transfer queue full")
	}
}

// Read is called by the oto playback goroutine.
func (s *OtoSink) Read(p []byte) (int, error) {
	n := 0
	for n+1 < len(p) {
		if s.cur == nil {
			select {
			case t := <-s.pending:
				s.cur = &t
				s.off = 0
			default:
				// Underrun or idle: pad with silence.
				for ; n+1 < len(p); n += 2 {
					p[n] = 0
					p[n+1] = 0
				}
				return n, nil
			}
		}
		for s.off < len(s.cur.buf) && n+1 < len(p) {
			v := uint16(s.cur.buf[s.off])
			p[n] = byte(v)
			p[n+1] = byte(v >> 8)
			n += 2
			s.off++
		}
		if s.off == len(s.cur.buf) {
			close(s.cur.done)
			s.cur = nil
		}
	}
	return n, nil
}

// Close stops playback and releases any producer waiting on a completion.
func (s *OtoSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := s.player.Close()
	for {
		select {
		case t := <-s.pending:
			close(t.done)
		default:
			return err
		}
	}
}
