package phoneme

import (
	"fmt"

	"github.com/loqalabs/loqa-sam/internal/tables"
)

// Terminator ends a mnemonic stream.
const Terminator byte = 0x9B

// Resolver tokenizes mnemonic streams against a phoneme name table.
type Resolver struct {
	pairs  map[[2]byte]uint8
	single map[byte]uint8
	marks  [9]byte
}

// NewResolver indexes the names of set. When several rows share a name the
// lowest index wins.
func NewResolver(set *tables.Set) *Resolver {
	r := &Resolver{
		pairs:  make(map[[2]byte]uint8),
		single: make(map[byte]uint8),
		marks:  set.StressMarks,
	}
	for i := tables.PhonemeCount - 1; i >= 0; i-- {
		name := set.Phonemes[i].Name
		if name[1] == '*' {
			r.single[name[0]] = uint8(i)
		} else {
			r.pairs[name] = uint8(i)
		}
	}
	return r
}

// Resolve converts a mnemonic stream ending in Terminator into a sequence.
// A stress digit applies to the phoneme before it.
func (r *Resolver) Resolve(buf []byte) (*Sequence, error) {
	seq := NewSequence()
	for i := 0; ; {
		if i >= len(buf) {
			return nil, fmt.Errorf("%w: stream not terminated", ErrTokenization)
		}
		first := buf[i]
		if first == Terminator {
			return seq, nil
		}
		i++
		var second byte
		if i < len(buf) {
			second = buf[i]
		}

		if index, ok := r.pairs[[2]byte{first, second}]; ok {
			if err := seq.Append(Entry{Index: index}); err != nil {
				return nil, err
			}
			i++
			continue
		}
		if index, ok := r.single[first]; ok {
			if err := seq.Append(Entry{Index: index}); err != nil {
				return nil, err
			}
			continue
		}

		stress := r.stress(first)
		if stress == 0 {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrTokenization, first, i-1)
		}
		if last := seq.Len() - 1; last >= 0 {
			seq.SetStress(last, stress)
		}
	}
}

// stress searches the marks from the highest value down. Slot 0 never
// matches.
func (r *Resolver) stress(c byte) uint8 {
	for v := len(r.marks) - 1; v > 0; v-- {
		if r.marks[v] == c {
			return uint8(v)
		}
	}
	return 0
}
