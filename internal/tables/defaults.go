package tables

import (
	"math"
	"strings"
)

const defaultStressMarks = "*12345678"

var (
	defaultStressPitch = [11]uint8{0x00, 0x00, 0xE0, 0xE6, 0xEC, 0xF3, 0xF9, 0x00, 0x06, 0x0C, 0x06}
	defaultNoiseLevels = [5]uint8{0x18, 0x1A, 0x17, 0x17, 0x17}

	// Base formants for rows 5..29; rows 0..4 are unused.
	defaultMouth = [30]uint8{
		0, 0, 0, 0, 0, 10, 14, 19, 24, 27, 23, 21, 16, 20, 14,
		18, 14, 18, 18, 16, 13, 15, 11, 18, 14, 11, 9, 6, 6, 6,
	}
	defaultThroat = [30]uint8{
		255, 255, 255, 255, 255, 84, 73, 67, 63, 40, 44, 31, 37, 45, 73,
		49, 36, 30, 51, 37, 29, 69, 24, 50, 30, 24, 83, 46, 54, 86,
	}
	// Base formants for rows 48..53.
	defaultMouthDiphthong  = [6]uint8{19, 27, 21, 27, 18, 13}
	defaultThroatDiphthong = [6]uint8{72, 39, 31, 43, 30, 34}
)

var amplitudeSteps = [16]uint8{0, 1, 2, 2, 2, 3, 3, 4, 4, 5, 6, 8, 9, 0x0B, 0x0D, 0x0F}

func defaultAmplitudeRescale() [256]uint8 {
	var t [256]uint8
	copy(t[:], amplitudeSteps[:])
	return t
}

// defaultSine is one period of a sine quantised to a signed high nibble.
func defaultSine() [256]uint8 {
	var t [256]uint8
	for i := range t {
		v := int8(math.Round(math.Sin(2*math.Pi*float64(i)/256) * 7))
		t[i] = uint8(v << 4)
	}
	return t
}

func defaultRectangle() [256]uint8 {
	var t [256]uint8
	for i := range t {
		if i < 128 {
			t[i] = 0x90
		} else {
			t[i] = 0x70
		}
	}
	return t
}

// defaultNoiseBanks fills each bank from a 9-bit LFSR, one seed per bank.
// Banks used by breathier consonants are thinned by AND-ing two successive
// outputs.
func defaultNoiseBanks() [5][256]uint8 {
	var banks [5][256]uint8
	seeds := [5]uint16{0x1FF, 0x0F3, 0x15A, 0x0A7, 0x1C4}
	thin := [5]bool{false, false, true, true, false}
	for b := range banks {
		reg := seeds[b]
		next := func() uint8 {
			var v uint8
			for bit := 0; bit < 8; bit++ {
				out := reg & 1
				feedback := (reg ^ (reg >> 4)) & 1
				reg = reg>>1 | feedback<<8
				v = v<<1 | uint8(out)
			}
			return v
		}
		for i := range banks[b] {
			v := next()
			if thin[b] {
				v &= next()
			}
			banks[b][i] = v
		}
	}
	return banks
}

const (
	vowels   = "AEIOUY"
	voiced   = "BDGJLMNRVWZ"
	sibilant = "CGJSXZ"
	alveolar = "DJLNRSTZ"
	ruled    = "!\"#$%&'*+,-./:;<=>?@^"
)

// defaultClasses derives the character class table from letter sets.
func defaultClasses() [256]uint8 {
	var c [256]uint8
	for ch := byte('0'); ch <= '9'; ch++ {
		c[ch] = ClassDigit | ClassRuleGroup
	}
	for i := 0; i < len(ruled); i++ {
		c[ruled[i]] = ClassRuleGroup
	}
	// The apostrophe is also usable as a literal inside rule contexts.
	c['\''] |= ClassLetterLike
	for ch := byte('A'); ch <= 'Z'; ch++ {
		class := ClassLetterLike
		if strings.IndexByte(vowels, ch) >= 0 {
			class |= ClassVowel
		} else {
			class |= ClassConsonant
		}
		if strings.IndexByte(voiced, ch) >= 0 {
			class |= ClassVoiced
		}
		if strings.IndexByte(sibilant, ch) >= 0 {
			class |= ClassSibilant
		}
		if strings.IndexByte(alveolar, ch) >= 0 {
			class |= ClassAlveolar
		}
		c[ch] = class
	}
	return c
}
