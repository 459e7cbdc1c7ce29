// Package formant renders timed phoneme chunks into 8-bit PCM using three
// phase-accumulating oscillators per glottal pulse and sampled noise for
// fricatives and plosive bursts.
package formant

import "github.com/loqalabs/loqa-sam/internal/tables"

// SampleRate is the rate of the PCM the renderer produces.
const SampleRate = 22050

// Defaults of the classic voice.
const (
	DefaultPitch  uint8 = 64
	DefaultSpeed  uint8 = 72
	DefaultMouth  uint8 = 128
	DefaultThroat uint8 = 128
)

// Voice is the formant frequency table for one mouth/throat setting. It is
// immutable and safe to share; changing the setting builds a new Voice.
type Voice struct {
	set    *tables.Set
	mouth  uint8
	throat uint8
	freq   [3][tables.PhonemeCount]uint8
}

// NewVoice scales the mouth (F1) and throat (F2) formants of the voiced rows
// 5..29 and 48..53. Other rows keep their table frequencies.
func NewVoice(set *tables.Set, mouth, throat uint8) *Voice {
	v := &Voice{set: set, mouth: mouth, throat: throat}
	for i, p := range set.Phonemes {
		v.freq[0][i] = p.Freq[0]
		v.freq[1][i] = p.Freq[1]
		v.freq[2][i] = p.Freq[2]
	}

	// A zero base keeps the most recent scaled value, whichever formant it
	// came from.
	var scaled uint8
	for i := 5; i < 30; i++ {
		if base := set.Mouth[i]; base != 0 {
			scaled = Trans(mouth, base)
		}
		v.freq[0][i] = scaled
		if base := set.Throat[i]; base != 0 {
			scaled = Trans(throat, base)
		}
		v.freq[1][i] = scaled
	}
	for i := 0; i < len(set.MouthDiphthong); i++ {
		v.freq[0][48+i] = Trans(mouth, set.MouthDiphthong[i])
		v.freq[1][48+i] = Trans(throat, set.ThroatDiphthong[i])
	}
	return v
}

// Mouth returns the mouth setting the voice was built with.
func (v *Voice) Mouth() uint8 { return v.mouth }

// Throat returns the throat setting the voice was built with.
func (v *Voice) Throat() uint8 { return v.throat }

// Tables returns the table set behind the voice.
func (v *Voice) Tables() *tables.Set { return v.set }

// Trans scales base by factor/128 with a bit-serial shift-and-add multiply.
// Every step is 8 bits wide, and the carry out of each add is shifted back in.
func Trans(factor, base uint8) uint8 {
	var acc uint8
	for i := 0; i < 8; i++ {
		var carry uint8
		if factor&1 != 0 {
			sum := uint16(acc) + uint16(base)
			acc = uint8(sum)
			carry = uint8(sum >> 8)
		}
		factor >>= 1
		acc = acc>>1 | carry<<7
	}
	return acc << 1
}
