package voice

import (
	"github.com/polykeeb/polykeeb-go/internal/note"
	"github.com/polykeeb/polykeeb-go/internal/scan"
)

// Graph is the control surface the allocator drives: the per-voice frequency
// and gate cells of the synthesis graph. The allocator is the sole writer of
// both.
type Graph interface {
	SetFrequency(voice int, hz float32)
	SetGate(voice int, level float32)
}

type slot struct {
	assigned bool
	note     note.ID
	base     float32 // frequency before bend
}

// Allocator owns a fixed pool of synthesis voices and maps note events onto
// them. The pool never grows; a slot is only ever reassigned by a later
// note-on, either through the free search or the round-robin steal.
type Allocator struct {
	graph  Graph
	bend   *Bend
	slots  []slot
	cursor int
}

func NewAllocator(graph Graph, bend *Bend, voices int) *Allocator {
	if voices <= 0 {
		voices = 7
	}
	return &Allocator{
		graph: graph,
		bend:  bend,
		slots: make([]slot, voices),
	}
}

func (a *Allocator) VoiceCount() int { return len(a.slots) }

// NoteOn assigns a voice to n and raises its gate. If a voice already holds
// n this only retriggers the gate. Otherwise the lowest-index free slot is
// used; with no free slot, the voice at the round-robin cursor is stolen and
// the cursor advances by one, so sustained pressure cycles through every
// voice before revisiting one.
func (a *Allocator) NoteOn(n note.ID) {
	for i := range a.slots {
		if a.slots[i].assigned && a.slots[i].note == n {
			a.graph.SetGate(i, 1)
			return
		}
	}
	target := -1
	for i := range a.slots {
		if !a.slots[i].assigned {
			target = i
			break
		}
	}
	if target < 0 {
		target = a.cursor
		a.cursor = (a.cursor + 1) % len(a.slots)
	}
	s := &a.slots[target]
	s.assigned = true
	s.note = n
	s.base = note.Frequency(n.Key(), n.Octave())
	a.graph.SetFrequency(target, s.base*a.bend.Ratio())
	a.graph.SetGate(target, 1)
}

// NoteOff lowers the gate of the voice holding n so its release phase can
// play out. The voice stays assigned; it becomes reusable only through a
// later NoteOn. Unknown notes are ignored.
func (a *Allocator) NoteOff(n note.ID) {
	for i := range a.slots {
		if a.slots[i].assigned && a.slots[i].note == n {
			a.graph.SetGate(i, 0)
			return
		}
	}
}

// SetPitchBend validates and stores a new bend, then reapplies it to every
// assigned voice as base*ratio. Out-of-range input is rejected before any
// voice is touched.
func (a *Allocator) SetPitchBend(semitones float32) error {
	if _, err := a.bend.Set(semitones); err != nil {
		return err
	}
	a.ReapplyBend()
	return nil
}

// ReapplyBend retunes every assigned voice to base*ratio using the current
// bend. Called from the audio goroutine when the bend cell has changed.
func (a *Allocator) ReapplyBend() {
	ratio := a.bend.Ratio()
	for i := range a.slots {
		if a.slots[i].assigned {
			a.graph.SetFrequency(i, a.slots[i].base*ratio)
		}
	}
}

// Apply feeds one scan pass worth of events through the allocator in order.
func (a *Allocator) Apply(events []scan.Event) {
	for _, e := range events {
		id := note.Encode(e.Key, e.Octave)
		if e.Pressed {
			a.NoteOn(id)
		} else {
			a.NoteOff(id)
		}
	}
}
