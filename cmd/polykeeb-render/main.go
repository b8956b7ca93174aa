package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/polykeeb/polykeeb-go"
)

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 44100, "output sample rate")
		seconds    = flag.Float64("seconds", 3.0, "length of the rendered clip")
		outPath    = flag.String("out", "out.wav", "output WAV path")
		scriptPath = flag.String("script", "", "key script file (\"<ms> <key> <octave> on|off\" per line)")
		voices     = flag.Int("voices", polykeeb.DefaultVoiceCount, "voice pool size")
		chorus     = flag.Bool("chorus", false, "add a chorus stage after the filter")
		delayMs    = flag.Float64("delay", 0, "add a feedback delay stage of this many milliseconds")
	)
	flag.Parse()

	script, err := resolveScript(*scriptPath)
	if err != nil {
		log.Fatal(err)
	}

	opts := []polykeeb.Option{polykeeb.WithVoiceCount(*voices)}
	if *chorus {
		opts = append(opts, polykeeb.WithChorus(18, 0.25, 4, 0.9, 0.35))
	}
	if *delayMs > 0 {
		opts = append(opts, polykeeb.WithDelay(*delayMs, 0.35, 0.3))
	}

	samples := polykeeb.RenderScript(script, *sampleRate, *seconds, opts...)
	wav := polykeeb.EncodeWAVInt16LE(samples, *sampleRate)
	if err := os.WriteFile(*outPath, wav, 0o644); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("wrote %s (%d samples, %d events)\n", *outPath, len(samples), len(script))
}

func resolveScript(path string) ([]polykeeb.KeyEvent, error) {
	if strings.TrimSpace(path) == "" {
		return demoScript(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseScript(f)
}

func parseScript(f *os.File) ([]polykeeb.KeyEvent, error) {
	var events []polykeeb.KeyEvent
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 4 {
			return nil, fmt.Errorf("line %d: want \"<ms> <key> <octave> on|off\", got %q", line, text)
		}
		ms, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: bad time %q", line, fields[0])
		}
		key, err := strconv.Atoi(fields[1])
		if err != nil || key < 0 || key >= polykeeb.DefaultKeyCount {
			return nil, fmt.Errorf("line %d: bad key %q", line, fields[1])
		}
		octave, err := strconv.Atoi(fields[2])
		if err != nil || octave < 0 || octave >= polykeeb.DefaultOctaveCount {
			return nil, fmt.Errorf("line %d: bad octave %q", line, fields[2])
		}
		var pressed bool
		switch fields[3] {
		case "on":
			pressed = true
		case "off":
		default:
			return nil, fmt.Errorf("line %d: want on|off, got %q", line, fields[3])
		}
		events = append(events, polykeeb.KeyEvent{
			At:      time.Duration(ms) * time.Millisecond,
			Key:     key,
			Octave:  octave,
			Pressed: pressed,
		})
	}
	return events, sc.Err()
}

// demoScript arpeggiates a C major chord across two octaves.
func demoScript() []polykeeb.KeyEvent {
	steps := []struct {
		key, octave int
	}{
		{0, 0}, {4, 0}, {7, 0}, {0, 1}, {4, 1}, {7, 1}, {0, 2},
	}
	var events []polykeeb.KeyEvent
	for i, s := range steps {
		at := time.Duration(i) * 300 * time.Millisecond
		events = append(events,
			polykeeb.KeyEvent{At: at, Key: s.key, Octave: s.octave, Pressed: true},
			polykeeb.KeyEvent{At: at + 250*time.Millisecond, Key: s.key, Octave: s.octave, Pressed: false},
		)
	}
	return events
}
