// Package reciter converts English text into phoneme mnemonics using
// context-sensitive letter-to-sound rules.
package reciter

import (
	"errors"
	"fmt"

	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

// ErrTranscription reports text the rules cannot transcribe.
var ErrTranscription = errors.New("transcription failed")

const (
	// MaxInput is the number of text bytes considered; the rest is dropped.
	MaxInput = 253
	// maxOutput bounds the mnemonic buffer, terminator included.
	maxOutput = 255
	// spaceCutoff is the output offset past which a word boundary ends the
	// transcription early.
	spaceCutoff = 120

	inputEnd = '['
	bufEnd   = 27
)

// Transcriber applies the rule groups of a table set. It holds no mutable
// state and is safe for concurrent use.
type Transcriber struct {
	set *tables.Set
}

// New returns a transcriber for set.
func New(set *tables.Set) *Transcriber {
	return &Transcriber{set: set}
}

// Fold maps a raw input byte onto the upper-case range the rules use.
func Fold(c byte) byte {
	c &= 0x7F
	switch {
	case c >= 112:
		c &= 0x5F
	case c >= 96:
		c &= 0x4F
	}
	return c
}

// Transcribe converts text to a mnemonic stream ending in
// phoneme.Terminator. A '[' in the text ends transcription early.
func (tr *Transcriber) Transcribe(text []byte) ([]byte, error) {
	var in [256]byte
	in[0] = ' '
	n := len(text)
	if n > MaxInput {
		n = MaxInput
	}
	for i := 0; i < n; i++ {
		in[i+1] = Fold(text[i])
	}
	in[n+1] = inputEnd
	in[255] = bufEnd

	out := make([]byte, 0, maxOutput)
	emit := func(b ...byte) error {
		if len(out)+len(b) >= maxOutput {
			return fmt.Errorf("transcription output: %w", phoneme.ErrCapacityExceeded)
		}
		out = append(out, b...)
		return nil
	}

	// Slot 0 is left context only; scanning starts at the first text byte.
	pos := uint8(0)
	for {
		pos++
		c := in[pos]
		if c == inputEnd {
			return append(out, phoneme.Terminator), nil
		}
		if c == '.' && tr.set.Class(in[pos+1])&tables.ClassDigit == 0 {
			if err := emit('.'); err != nil {
				return nil, err
			}
			continue
		}

		class := tr.set.Class(c)
		var group []tables.Rule
		switch {
		case class&tables.ClassRuleGroup != 0:
			group = tr.set.PunctuationRules
		case class == 0:
			in[pos] = ' '
			if len(out) > spaceCutoff {
				return append(out, phoneme.Terminator), nil
			}
			if err := emit(' '); err != nil {
				return nil, err
			}
			continue
		case class&tables.ClassLetterLike == 0:
			return nil, fmt.Errorf("%w: no rules for %q at offset %d", ErrTranscription, c, int(pos)-1)
		default:
			if c < 'A' || c > 'Z' {
				return nil, fmt.Errorf("%w: no rule group for %q at offset %d", ErrTranscription, c, int(pos)-1)
			}
			group = tr.set.LetterRules[c-'A']
		}

		last, rule, err := tr.match(&in, pos, group)
		if err != nil {
			return nil, err
		}
		if err := emit([]byte(rule.Out)...); err != nil {
			return nil, err
		}
		pos = last
	}
}

// match returns the first rule of group that applies at pos together with
// the position of the last input byte it consumed.
func (tr *Transcriber) match(in *[256]byte, pos uint8, group []tables.Rule) (uint8, tables.Rule, error) {
	for _, rule := range group {
		last, ok := literal(in, pos, rule.Match)
		if !ok {
			continue
		}
		left, err := tr.left(in, pos, rule.Left)
		if err != nil {
			return 0, rule, err
		}
		if !left {
			continue
		}
		right, err := tr.right(in, last, rule.Right)
		if err != nil {
			return 0, rule, err
		}
		if right {
			return last, rule, nil
		}
	}
	return 0, tables.Rule{}, fmt.Errorf("%w: no rule matches %q at offset %d", ErrTranscription, in[pos], int(pos)-1)
}

func literal(in *[256]byte, pos uint8, match string) (uint8, bool) {
	at := pos
	for i := 0; i < len(match); i++ {
		if in[at] != match[i] {
			return 0, false
		}
		at++
	}
	return at - 1, true
}
