package audio

import (
	"sync/atomic"
	"time"
)

// NullSink discards submitted buffers, completing each transfer either
// immediately or after a fixed simulated drain time. It stands in for the
// real device in tests and offline rendering.
type NullSink struct {
	// Drain is the simulated per-buffer drain time. Zero completes
	// transfers immediately.
	Drain time.Duration

	transfers atomic.Int64
}

func (s *NullSink) Submit(buf []int16) (<-chan struct{}, error) {
	s.transfers.Add(1)
	done := make(chan struct{})
	if s.Drain <= 0 {
		close(done)
		return done, nil
	}
	time.AfterFunc(s.Drain, func() { close(done) })
	return done, nil
}

// Transfers reports how many buffers have been submitted so far.
func (s *NullSink) Transfers() int64 {
	return s.transfers.Load()
}
