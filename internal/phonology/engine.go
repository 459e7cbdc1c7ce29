// Package phonology rewrites a resolved phoneme sequence into the timed form
// the renderer consumes: contextual substitutions, stress propagation, frame
// lengths, plosive release splitting and breath-group breaks.
package phonology

import (
	"fmt"

	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

// Engine applies the rule passes for one table set. It keeps no per-call
// state, so one Engine may serve concurrent utterances as long as each
// call owns its sequence.
type Engine struct {
	set *tables.Set
}

// New returns an engine bound to set.
func New(set *tables.Set) *Engine {
	return &Engine{set: set}
}

// Apply runs every pass in order. The sequence is left partially rewritten
// when an error is returned.
func (e *Engine) Apply(seq *phoneme.Sequence) error {
	if err := e.Rewrite(seq); err != nil {
		return fmt.Errorf("rewrite: %w", err)
	}
	e.CopyStress(seq)
	e.AssignLengths(seq)
	e.LengthenBeforePunctuation(seq)
	e.AdjustLengths(seq)
	if err := e.SplitPlosives(seq); err != nil {
		return fmt.Errorf("split plosives: %w", err)
	}
	if err := e.InsertBreaths(seq); err != nil {
		return fmt.Errorf("insert breaths: %w", err)
	}
	return nil
}

func (e *Engine) flags(seq *phoneme.Sequence, pos int) tables.Flags {
	return e.set.Flags(seq.Index(pos))
}

func (e *Engine) is(seq *phoneme.Sequence, pos int, f tables.Flags) bool {
	return e.flags(seq, pos)&f != 0
}

func (e *Engine) row(index uint8) tables.Phoneme {
	if int(index) >= tables.PhonemeCount {
		return tables.Phoneme{}
	}
	return e.set.Phonemes[index]
}
