package note

// ID encodes a (key, octave) pair as a single small integer: the key index in
// the low four bits, the octave index above. Two distinct pairs never collide
// as long as the key index stays below 16.
type ID uint8

func Encode(key, octave int) ID {
	return ID(octave<<4 | key&0x0f)
}

func (n ID) Key() int {
	return int(n) & 0x0f
}

func (n ID) Octave() int {
	return int(n) >> 4
}

// KeysPerOctave is the size of the chromatic base-pitch table.
const KeysPerOctave = 12

// basePitches holds the equal-tempered fourth octave, C4 through B4.
var basePitches = [KeysPerOctave]float32{
	261.63, // C4
	277.18, // C#4
	293.66, // D4
	311.13, // D#4
	329.63, // E4
	349.23, // F4
	369.99, // F#4
	392.00, // G4
	415.30, // G#4
	440.00, // A4
	466.16, // A#4
	493.88, // B4
}

// Frequency returns the pitch of a key before any bend is applied. Each
// octave index doubles the base table entry.
func Frequency(key, octave int) float32 {
	return basePitches[key%KeysPerOctave] * float32(uint(1)<<uint(octave))
}
