package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/polykeeb/polykeeb-go"
)

const (
	windowW = 760
	windowH = 320

	keyW   = 56
	keyH   = 160
	keyPad = 4
)

var (
	bgColor      = color.RGBA{24, 24, 32, 255}
	whiteKey     = color.RGBA{220, 220, 220, 255}
	blackKey     = color.RGBA{64, 64, 72, 255}
	pressedColor = color.RGBA{0, 128, 255, 255}
)

// keyBinds maps the chromatic key indices onto one QWERTY row plus its
// sharps, virtual-piano style.
var keyBinds = [polykeeb.DefaultKeyCount]ebiten.Key{
	ebiten.KeyA, // C
	ebiten.KeyW, // C#
	ebiten.KeyS, // D
	ebiten.KeyE, // D#
	ebiten.KeyD, // E
	ebiten.KeyF, // F
	ebiten.KeyT, // F#
	ebiten.KeyG, // G
	ebiten.KeyY, // G#
	ebiten.KeyH, // A
	ebiten.KeyU, // A#
	ebiten.KeyJ, // B
}

var sharps = map[int]bool{1: true, 3: true, 6: true, 8: true, 10: true}

// hostMatrix stands in for the hardware key matrix: one bit per
// (octave, key), written on the ebiten update goroutine and read by the
// audio goroutine's scan pass. The QWERTY row feeds whichever octave is
// currently selected in the UI, and the gate discipline picks the bank
// being strobed, exactly as the octave select lines would.
type hostMatrix struct {
	bits    atomic.Uint64
	enabled atomic.Int32
}

func (m *hostMatrix) Enable(octave int)  { m.enabled.Store(int32(octave)) }
func (m *hostMatrix) Disable(octave int) { m.enabled.Store(-1) }

func (m *hostMatrix) KeyPressed(key int) bool {
	oct := m.enabled.Load()
	if oct < 0 {
		return false
	}
	bit := uint64(1) << uint(int(oct)*polykeeb.DefaultKeyCount+key)
	return m.bits.Load()&bit != 0
}

func (m *hostMatrix) setOctaveRow(octave int, levels uint64) {
	shift := uint(octave * polykeeb.DefaultKeyCount)
	const rowMask = uint64(1)<<polykeeb.DefaultKeyCount - 1
	for {
		old := m.bits.Load()
		next := old&^(rowMask<<shift) | levels<<shift
		if m.bits.CompareAndSwap(old, next) {
			return
		}
	}
}

type game struct {
	kb     *polykeeb.Keyboard
	matrix *hostMatrix
	octave int
	bend   float32
	volume float64
}

func (g *game) Update() error {
	// Octave selection on the number row.
	for o := 0; o < polykeeb.DefaultOctaveCount; o++ {
		if inpututil.IsKeyJustPressed(ebiten.KeyDigit1 + ebiten.Key(o)) {
			g.matrix.setOctaveRow(g.octave, 0) // lift keys left behind
			g.octave = o
		}
	}

	var levels uint64
	for k, bind := range keyBinds {
		if ebiten.IsKeyPressed(bind) {
			levels |= 1 << uint(k)
		}
	}
	g.matrix.setOctaveRow(g.octave, levels)

	// Pitch bend on the arrow keys; this runs on the UI goroutine,
	// cross-wired onto the shared bend cell.
	switch {
	case ebiten.IsKeyPressed(ebiten.KeyUp):
		g.bend += 0.2
	case ebiten.IsKeyPressed(ebiten.KeyDown):
		g.bend -= 0.2
	case inpututil.IsKeyJustPressed(ebiten.KeyR):
		g.bend = 0
	}
	if g.bend > 12 {
		g.bend = 12
	}
	if g.bend < -12 {
		g.bend = -12
	}
	if err := g.kb.SetPitchBend(g.bend); err != nil {
		return err
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) && g.volume > 0.05 {
		g.volume -= 0.1
		g.kb.SetMasterVolume(g.volume)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) && g.volume < 2 {
		g.volume += 0.1
		g.kb.SetMasterVolume(g.volume)
	}
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	for k := 0; k < polykeeb.DefaultKeyCount; k++ {
		x := float64(20 + k*(keyW+keyPad))
		y := float64(80)
		c := whiteKey
		if sharps[k] {
			c = blackKey
			y -= 30
		}
		if ebiten.IsKeyPressed(keyBinds[k]) {
			c = pressedColor
		}
		ebitenutil.DrawRect(screen, x, y, keyW, keyH, c)
		ebitenutil.DebugPrintAt(screen, keyBinds[k].String(), int(x)+keyW/2-4, int(y)+keyH-18)
	}
	msg := fmt.Sprintf("octave %d (1-%d to switch)  bend %+.1f st (up/down, R resets)  volume %.1f (-/=)",
		g.octave+1, polykeeb.DefaultOctaveCount, g.bend, g.volume)
	ebitenutil.DebugPrintAt(screen, msg, 20, windowH-40)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	return windowW, windowH
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 44100, "output sample rate")
		voices     = flag.Int("voices", polykeeb.DefaultVoiceCount, "voice pool size")
		chorus     = flag.Bool("chorus", false, "add a chorus stage after the filter")
		delayMs    = flag.Float64("delay", 0, "add a feedback delay stage of this many milliseconds")
	)
	flag.Parse()

	matrix := &hostMatrix{}
	matrix.enabled.Store(-1)

	opts := []polykeeb.Option{polykeeb.WithVoiceCount(*voices)}
	if *chorus {
		opts = append(opts, polykeeb.WithChorus(18, 0.25, 4, 0.9, 0.35))
	}
	if *delayMs > 0 {
		opts = append(opts, polykeeb.WithDelay(*delayMs, 0.35, 0.3))
	}

	kb, err := polykeeb.New(*sampleRate, matrix, matrix, opts...)
	if err != nil {
		log.Fatal(err)
	}
	if err := kb.Start(); err != nil {
		log.Fatal(err)
	}
	defer kb.Stop()

	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("polykeeb")
	if err := ebiten.RunGame(&game{kb: kb, matrix: matrix, volume: 1}); err != nil {
		log.Fatal(err)
	}
}
