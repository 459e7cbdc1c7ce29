package phonology

import (
	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

// Rewrite applies the contextual substitutions in one forward scan. Inserted
// phonemes are visited by the same scan, except the consonant split off a
// syllabic UL, UM or UN.
func (e *Engine) Rewrite(seq *phoneme.Sequence) error {
	for pos := 0; pos < seq.Len(); pos++ {
		index := seq.Index(pos)
		if index == phoneme.Pause {
			continue
		}
		if err := e.rewriteAt(seq, pos); err != nil {
			return err
		}
		switch index {
		case phoneme.UL, phoneme.UM, phoneme.UN:
			pos++
		}
	}
	return nil
}

func (e *Engine) rewriteAt(seq *phoneme.Sequence, pos int) error {
	index := seq.Index(pos)
	flags := e.set.Flags(index)

	if flags&tables.FlagDiphthong != 0 {
		glide := phoneme.WX
		if flags&tables.FlagFront != 0 {
			glide = phoneme.YX
		}
		if err := seq.Insert(pos+1, phoneme.Entry{Index: glide, Stress: seq.Stress(pos)}); err != nil {
			return err
		}
		return e.release(seq, pos, index)
	}

	switch index {
	case phoneme.UL:
		return e.syllabic(seq, pos, phoneme.L)
	case phoneme.UM:
		return e.syllabic(seq, pos, phoneme.M)
	case phoneme.UN:
		return e.syllabic(seq, pos, phoneme.N)
	}

	if inserted, err := e.glottalStop(seq, pos); inserted || err != nil {
		return err
	}

	prev := seq.Index(pos - 1)
	switch index {
	case phoneme.R:
		switch {
		case prev == phoneme.T:
			seq.SetIndex(pos-1, phoneme.CH)
			e.flap(seq, phoneme.T, pos-1, pos)
		case prev == phoneme.D:
			seq.SetIndex(pos-1, phoneme.J)
			e.flap(seq, phoneme.D, pos-1, pos)
		case e.is(seq, pos-1, tables.FlagVowel):
			seq.SetIndex(pos, phoneme.RX)
		}
		return nil
	case phoneme.L:
		if e.is(seq, pos-1, tables.FlagVowel) {
			seq.SetIndex(pos, phoneme.LX)
		}
		return nil
	case phoneme.S:
		if prev == phoneme.G {
			seq.SetIndex(pos, phoneme.Z)
		}
		return nil
	case phoneme.K:
		if next := seq.Index(pos + 1); next == phoneme.End || e.set.Flags(next)&tables.FlagFront == 0 {
			seq.SetIndex(pos, phoneme.KX)
			index = phoneme.KX
		}
	case phoneme.G:
		if next := seq.Index(pos + 1); next != phoneme.End && e.set.Flags(next)&tables.FlagFront == 0 {
			seq.SetIndex(pos, phoneme.GX)
		}
		return nil
	}

	// S P, S T, S K and S KX soften to the voiced stop twelve rows earlier.
	if e.set.Flags(index)&tables.FlagUnvoicedPlosive != 0 && prev == phoneme.S {
		seq.SetIndex(pos, index-12)
		return nil
	}
	return e.release(seq, pos, index)
}

// syllabic turns UL, UM and UN into AX followed by the consonant.
func (e *Engine) syllabic(seq *phoneme.Sequence, pos int, consonant uint8) error {
	seq.SetIndex(pos, phoneme.AX)
	return seq.Insert(pos+1, phoneme.Entry{Index: consonant, Stress: seq.Stress(pos)})
}

// glottalStop separates two stressed vowels split by a pause with Q.
func (e *Engine) glottalStop(seq *phoneme.Sequence, pos int) (bool, error) {
	if !e.is(seq, pos, tables.FlagVowel) || seq.Stress(pos) == 0 {
		return false, nil
	}
	if seq.Index(pos+1) != phoneme.Pause {
		return false, nil
	}
	if !e.is(seq, pos+2, tables.FlagVowel) || seq.Stress(pos+2) == 0 {
		return false, nil
	}
	return true, seq.Insert(pos+2, phoneme.Entry{Index: phoneme.Q})
}

// release handles UW after an alveolar, the second half of CH and J, and the
// T/D flap.
func (e *Engine) release(seq *phoneme.Sequence, pos int, index uint8) error {
	if seq.Index(pos) == phoneme.UW {
		if e.is(seq, pos-1, tables.FlagAlveolar) {
			seq.SetIndex(pos, phoneme.UX)
		}
		return nil
	}
	switch index {
	case phoneme.CH, phoneme.J:
		return seq.Insert(pos+1, phoneme.Entry{Index: index + 1, Stress: seq.Stress(pos)})
	}
	e.flap(seq, index, pos, pos)
	return nil
}

// flap turns a T or D at pos that follows a vowel into DX when an unstressed
// vowel comes next, or a vowel follows a single pause. The rewrite lands on
// target.
func (e *Engine) flap(seq *phoneme.Sequence, index uint8, pos, target int) {
	if index != phoneme.T && index != phoneme.D {
		return
	}
	if !e.is(seq, pos-1, tables.FlagVowel) {
		return
	}
	if seq.Index(pos+1) != phoneme.Pause {
		if !e.is(seq, pos+1, tables.FlagVowel) || seq.Stress(pos+1) != 0 {
			return
		}
		seq.SetIndex(target, phoneme.DX)
		return
	}
	if e.is(seq, pos+2, tables.FlagVowel) {
		seq.SetIndex(target, phoneme.DX)
	}
}

// CopyStress gives a consonant directly before a stressed vowel that
// vowel's stress plus one.
func (e *Engine) CopyStress(seq *phoneme.Sequence) {
	for pos := 0; pos < seq.Len(); pos++ {
		if !e.is(seq, pos, tables.FlagConsonant) || !e.is(seq, pos+1, tables.FlagVowel) {
			continue
		}
		stress := seq.Stress(pos + 1)
		if stress == 0 || stress&0x80 != 0 {
			continue
		}
		seq.SetStress(pos, stress+1)
	}
}
