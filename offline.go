package polykeeb

import (
	"encoding/binary"
	"sort"
	"time"

	"github.com/polykeeb/polykeeb-go/internal/note"
	"github.com/polykeeb/polykeeb-go/internal/stream"
	"github.com/polykeeb/polykeeb-go/internal/synth"
	"github.com/polykeeb/polykeeb-go/internal/voice"
)

// KeyEvent is one scripted key transition for offline rendering.
type KeyEvent struct {
	At      time.Duration
	Key     int
	Octave  int
	Pressed bool
}

// RenderScript renders a timed key-press script through the same allocator
// and synthesis graph the live keyboard uses and returns mono float samples.
// Events are applied sample-accurately in (time, script order).
func RenderScript(script []KeyEvent, sampleRate int, seconds float64, opts ...Option) []float32 {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	graph := synth.New(sampleRate, cfg.synthParams)
	if tail := cfg.buildTail(sampleRate); tail != nil {
		graph.SetTail(tail)
	}
	bend := voice.NewBend()
	alloc := voice.NewAllocator(graph, bend, graph.VoiceCount())

	ordered := make([]KeyEvent, len(script))
	copy(ordered, script)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At < ordered[j].At
	})

	frames := int(float64(sampleRate) * seconds)
	out := make([]float32, frames)
	next := 0
	for frame := 0; frame < frames; {
		for next < len(ordered) {
			at := int(ordered[next].At.Seconds() * float64(sampleRate))
			if at > frame {
				break
			}
			e := ordered[next]
			id := note.Encode(e.Key, e.Octave)
			if e.Pressed {
				alloc.NoteOn(id)
			} else {
				alloc.NoteOff(id)
			}
			next++
		}
		end := frames
		if next < len(ordered) {
			if at := int(ordered[next].At.Seconds() * float64(sampleRate)); at < end {
				end = at
			}
		}
		if end <= frame {
			end = frame + 1
		}
		graph.RenderBlock(out[frame:end])
		frame = end
	}
	return out
}

// EncodeWAVInt16LE packs mono float samples into a 16-bit PCM WAV file,
// scaling by 32767 with truncation as the hardware sink does.
func EncodeWAVInt16LE(samples []float32, sampleRate int) []byte {
	const channels = 1
	dataSize := len(samples) * 2
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], channels)
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(stream.PCM16(s)))
	}
	return out
}
