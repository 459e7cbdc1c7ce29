package reciter

import (
	"fmt"

	"github.com/loqalabs/loqa-sam/internal/tables"
)

// left checks a left context pattern, reading it right to left and
// walking backwards from the byte before start.
func (tr *Transcriber) left(in *[256]byte, start uint8, pattern string) (bool, error) {
	pos := start
	for i := len(pattern) - 1; i >= 0; i-- {
		sym := pattern[i]
		prev := pos - 1
		if tr.set.Class(sym)&tables.ClassLetterLike != 0 {
			if in[prev] != sym {
				return false, nil
			}
			pos = prev
			continue
		}
		next, ok, err := tr.step(in, pos, prev, sym, -1)
		if err != nil || !ok {
			return false, err
		}
		pos = next
	}
	return true, nil
}

// right checks a right context pattern, walking forwards from the byte
// after last.
func (tr *Transcriber) right(in *[256]byte, last uint8, pattern string) (bool, error) {
	pos := last
	for i := 0; i < len(pattern); i++ {
		sym := pattern[i]
		next := pos + 1
		if tr.set.Class(sym)&tables.ClassLetterLike != 0 {
			if in[next] != sym {
				return false, nil
			}
			pos = next
			continue
		}
		if sym == '%' {
			end, ok := suffix(tr.set, in, next)
			if !ok {
				return false, nil
			}
			pos = end
			continue
		}
		moved, ok, err := tr.step(in, pos, next, sym, 1)
		if err != nil || !ok {
			return false, err
		}
		pos = moved
	}
	return true, nil
}

// step evaluates one context symbol against the neighbour at adj and
// returns the new cursor. dir is -1 for left contexts and 1 for right.
func (tr *Transcriber) step(in *[256]byte, pos, adj uint8, sym byte, dir int) (uint8, bool, error) {
	class := tr.set.Class(in[adj])
	switch sym {
	case ' ':
		return adj, class&tables.ClassLetterLike == 0, nil
	case '#':
		return adj, class&tables.ClassVowel != 0, nil
	case '.':
		return adj, class&tables.ClassVoiced != 0, nil
	case '^':
		return adj, class&tables.ClassConsonant != 0, nil
	case '+':
		c := in[adj]
		return adj, c == 'E' || c == 'I' || c == 'Y', nil
	case '&':
		if class&tables.ClassSibilant != 0 {
			return adj, true, nil
		}
		// CH or SH, read in walking order.
		if in[adj] != 'H' {
			return 0, false, nil
		}
		further := adj + uint8(dir)
		if c := in[further]; c == 'C' || c == 'S' {
			return further, true, nil
		}
		return 0, false, nil
	case '@':
		if class&tables.ClassAlveolar != 0 {
			return adj, true, nil
		}
		if in[adj] != 'H' {
			return 0, false, nil
		}
		// An 'H' can never also be T, C or S, so this never matches.
		if c := in[adj]; c != 'T' && c != 'C' && c != 'S' {
			return 0, false, nil
		}
		return adj, true, nil
	case ':':
		at := pos
		for {
			n := at + uint8(dir)
			if tr.set.Class(in[n])&tables.ClassConsonant == 0 {
				return at, true, nil
			}
			at = n
		}
	}
	return 0, false, fmt.Errorf("%w: unknown context symbol %q", ErrTranscription, sym)
}

// suffix matches the '%' endings starting at pos: E before a non-letter,
// ER, ES, ED, ELY, EFUL and ING. It returns the last byte consumed.
func suffix(set *tables.Set, in *[256]byte, pos uint8) (uint8, bool) {
	switch in[pos] {
	case 'E':
		if set.Class(in[pos+1])&tables.ClassLetterLike == 0 {
			return pos, true
		}
		next := pos + 1
		switch in[next] {
		case 'R', 'S', 'D':
			return next, true
		case 'L':
			if in[next+1] == 'Y' {
				return next + 1, true
			}
		case 'F':
			if in[next+1] == 'U' && in[next+2] == 'L' {
				return next + 2, true
			}
		}
		return 0, false
	case 'I':
		if in[pos+1] == 'N' && in[pos+2] == 'G' {
			return pos + 2, true
		}
	}
	return 0, false
}
