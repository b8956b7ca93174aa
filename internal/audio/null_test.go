package audio

import (
	"testing"
	"time"
)

func TestNullSinkCompletesImmediately(t *testing.T) {
	s := &NullSink{}
	done, err := s.Submit(make([]int16, 8))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
	default:
		t.Fatalf("transfer not complete")
	}
	if s.Transfers() != 1 {
		t.Fatalf("transfers = %d, want 1", s.Transfers())
	}
}

func TestNullSinkSimulatedDrain(t *testing.T) {
	s := &NullSink{Drain: 20 * time.Millisecond}
	done, err := s.Submit(make([]int16, 8))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-done:
		t.Fatalf("transfer completed before drain time")
	case <-time.After(5 * time.Millisecond):
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("transfer never completed")
	}
}
