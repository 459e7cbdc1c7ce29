package phonology

import (
	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

// unstressedMark flags a stress value that still selects the short length.
const unstressedMark = 0x80

// AssignLengths sets each phoneme's frame count from the stressed or
// unstressed length column.
func (e *Engine) AssignLengths(seq *phoneme.Sequence) {
	for pos := 0; pos < seq.Len(); pos++ {
		row := e.row(seq.Index(pos))
		stress := seq.Stress(pos)
		if stress == 0 || stress&unstressedMark != 0 {
			seq.SetLength(pos, row.Length)
		} else {
			seq.SetLength(pos, row.StressedLength)
		}
	}
}

// LengthenBeforePunctuation stretches the run from the last vowel before each
// punctuation mark up to the mark. Fricatives are left alone unless voiced.
// The pass stops when the backwards search reaches the first phoneme.
func (e *Engine) LengthenBeforePunctuation(seq *phoneme.Sequence) {
	for pos := 0; pos < seq.Len(); pos++ {
		if !e.is(seq, pos, tables.FlagPunctuation) {
			continue
		}
		start := pos - 1
		for ; start > 0 && !e.is(seq, start, tables.FlagVowel); start-- {
		}
		if start <= 0 {
			return
		}
		for at := start; at < pos; at++ {
			f := e.flags(seq, at)
			if f&tables.FlagFricative == 0 || f&tables.FlagVoiced != 0 {
				seq.SetLength(at, lengthen(seq.Length(at)))
			}
		}
	}
}

// lengthen returns l * 1.5 + 1, saturating at 255.
func lengthen(l uint8) uint8 {
	v := int(l) + int(l>>1) + 1
	if v > 0xFF {
		return 0xFF
	}
	return uint8(v)
}

// AdjustLengths applies the local duration heuristics. Lengths wrap as
// 8-bit values.
func (e *Engine) AdjustLengths(seq *phoneme.Sequence) {
	for pos := 0; pos < seq.Len(); pos++ {
		flags := e.flags(seq, pos)
		switch {
		case flags&tables.FlagVowel != 0:
			e.adjustVowel(seq, pos)

		case flags&tables.FlagNasal != 0:
			if e.is(seq, pos+1, tables.FlagStop) {
				seq.SetLength(pos+1, 6)
				seq.SetLength(pos, 5)
			}

		case flags&tables.FlagStop != 0:
			next := pos + 1
			for seq.Index(next) == phoneme.Pause {
				next++
			}
			if e.is(seq, next, tables.FlagStop) {
				seq.SetLength(next, seq.Length(next)>>1+1)
				seq.SetLength(pos, seq.Length(pos)>>1+1)
			}

		case flags&tables.FlagLiquid != 0:
			if e.is(seq, pos-1, tables.FlagStop) {
				seq.SetLength(pos, seq.Length(pos)-2)
			}
		}
	}
}

func (e *Engine) adjustVowel(seq *phoneme.Sequence, pos int) {
	next := seq.Index(pos + 1)
	nf := e.set.Flags(next)
	l := seq.Length(pos)
	switch {
	case nf&tables.FlagConsonant == 0:
		// Vowel, RX or LX, consonant.
		if (next == phoneme.RX || next == phoneme.LX) && e.is(seq, pos+2, tables.FlagConsonant) {
			seq.SetLength(pos, l-1)
		}
	case nf&tables.FlagVoiced == 0:
		if nf&tables.FlagUnvoicedPlosive != 0 {
			seq.SetLength(pos, l-l>>3)
		}
	default:
		seq.SetLength(pos, l+l>>2+1)
	}
}
