package audio

import "testing"

// The pull side of OtoSink is exercised without a real device by calling
// Read directly, the way the oto playback goroutine would.

func TestOtoSinkReadSerializesAndCompletes(t *testing.T) {
	s := &OtoSink{pending: make(chan transfer, 2)}
	done, err := s.Submit([]int16{0x0102, -1})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	p := make([]byte, 4)
	n, err := s.Read(p)
	if err != nil || n != 4 {
		t.Fatalf("read = %d, %v", n, err)
	}
	want := []byte{0x02, 0x01, 0xff, 0xff}
	for i := range want {
		if p[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, p[i], want[i])
		}
	}
	select {
	case <-done:
	default:
		t.Fatalf("transfer not completed after full drain")
	}
}

func TestOtoSinkReadSpansTransfers(t *testing.T) {
	s := &OtoSink{pending: make(chan transfer, 2)}
	d1, _ := s.Submit([]int16{1})
	d2, _ := s.Submit([]int16{2})
	p := make([]byte, 4)
	if n, _ := s.Read(p); n != 4 {
		t.Fatalf("read %d bytes, want 4", n)
	}
	if p[0] != 1 || p[2] != 2 {
		t.Fatalf("unexpected bytes %v", p)
	}
	<-d1
	<-d2
}

func TestOtoSinkPadsSilenceWhenIdle(t *testing.T) {
	s := &OtoSink{pending: make(chan transfer, 2)}
	p := []byte{9, 9, 9, 9}
	n, err := s.Read(p)
	if err != nil || n != 4 {
		t.Fatalf("read = %d, %v", n, err)
	}
	for i, b := range p {
		if b != 0 {
			t.Fatalf("byte %d = %d, want silence", i, b)
		}
	}
}

func TestOtoSinkPartialDrainKeepsTransferOpen(t *testing.T) {
	s := &OtoSink{pending: make(chan transfer, 2)}
	done, _ := s.Submit([]int16{1, 2, 3})
	p := make([]byte, 4) // room for two of three samples
	s.Read(p)
	select {
	case <-done:
		t.Fatalf("transfer completed before fully drained")
	default:
	}
	s.Read(p[:2])
	select {
	case <-done:
	default:
		t.Fatalf("transfer not completed after final sample")
	}
}
