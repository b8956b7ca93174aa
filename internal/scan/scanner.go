package scan

// PinReader reports the raw level of one key input line. When octave
// multiplexing is in use the key lines are shared across octaves, so the
// reading reflects whichever octave line is currently enabled.
type PinReader interface {
	KeyPressed(key int) bool
}

// OctaveGate drives the octave select lines of a multiplexed matrix. At most
// one octave may be enabled at a time; the scanner enables an octave, reads
// every key line, then disables it before moving on.
type OctaveGate interface {
	Enable(octave int)
	Disable(octave int)
}

// Event is one observed key transition.
type Event struct {
	Key     int
	Octave  int
	Pressed bool
}

// Scanner performs edge detection over a key matrix. It stores the last
// observed level per (octave, key) and emits an event only when a level
// changes, so each key's event stream alternates strictly between press and
// release.
type Scanner struct {
	pins    PinReader
	gate    OctaveGate
	keys    int
	octaves int
	state   [][]bool
}

// New builds a scanner for keys x octaves inputs. gate may be nil for an
// unmultiplexed matrix (octaves == 1).
func New(pins PinReader, gate OctaveGate, keys, octaves int) *Scanner {
	if keys <= 0 {
		keys = 12
	}
	if octaves <= 0 {
		octaves = 1
	}
	state := make([][]bool, octaves)
	for i := range state {
		state[i] = make([]bool, keys)
	}
	return &Scanner{
		pins:    pins,
		gate:    gate,
		keys:    keys,
		octaves: octaves,
		state:   state,
	}
}

func (s *Scanner) Keys() int    { return s.keys }
func (s *Scanner) Octaves() int { return s.octaves }

// ScanOctave reads every key line for one octave and appends an event for
// each level change, in ascending key order. State is updated as events are
// emitted, so a second scan of the same levels reports nothing.
func (s *Scanner) ScanOctave(octave int, dst []Event) []Event {
	if s.gate != nil {
		s.gate.Enable(octave)
	}
	row := s.state[octave]
	for key := 0; key < s.keys; key++ {
		pressed := s.pins.KeyPressed(key)
		if pressed == row[key] {
			continue
		}
		row[key] = pressed
		dst = append(dst, Event{Key: key, Octave: octave, Pressed: pressed})
	}
	if s.gate != nil {
		s.gate.Disable(octave)
	}
	return dst
}

// Scan performs one full pass: each octave is enabled, read and disabled in
// turn. Events are ordered by octave, then key index.
func (s *Scanner) Scan(dst []Event) []Event {
	for octave := 0; octave < s.octaves; octave++ {
		dst = s.ScanOctave(octave, dst)
	}
	return dst
}
