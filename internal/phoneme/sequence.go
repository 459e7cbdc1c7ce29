// Package phoneme tokenizes mnemonic streams into phoneme sequences and
// defines the sequence the rule engine and renderer share.
package phoneme

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loqalabs/loqa-sam/internal/tables"
)

var (
	// ErrTokenization reports a mnemonic stream with an unknown token.
	ErrTokenization = errors.New("unrecognized phoneme token")
	// ErrCapacityExceeded reports a sequence or frame buffer that would
	// outgrow its fixed capacity.
	ErrCapacityExceeded = errors.New("capacity exceeded")
)

// Marker indices.
const (
	Pause uint8 = 0
	Break uint8 = 254
	End   uint8 = 255
)

// Rows the rewrite rules address directly.
const (
	Period uint8 = 1
	Query  uint8 = 2
	AX     uint8 = 13
	UX     uint8 = 16
	RX     uint8 = 18
	LX     uint8 = 19
	WX     uint8 = 20
	YX     uint8 = 21
	R      uint8 = 23
	L      uint8 = 24
	M      uint8 = 27
	N      uint8 = 28
	DX     uint8 = 30
	Q      uint8 = 31
	S      uint8 = 32
	HH     uint8 = 36 // /H
	HX     uint8 = 37 // /X
	Z      uint8 = 38
	CH     uint8 = 42
	J      uint8 = 44
	UW     uint8 = 53
	D      uint8 = 57
	G      uint8 = 60
	GX     uint8 = 63
	T      uint8 = 69
	K      uint8 = 72
	KX     uint8 = 75
	UL     uint8 = 78
	UM     uint8 = 79
	UN     uint8 = 80
)

// Capacity is the number of slots in a sequence, end marker included.
const Capacity = 256

// Entry is one slot of a sequence.
type Entry struct {
	Index  uint8
	Length uint8
	Stress uint8
}

// Sequence is an ordered run of phonemes with an implicit end marker.
// Reads past the end return End; reads before the start return Pause.
type Sequence struct {
	entries []Entry
}

// NewSequence returns an empty sequence.
func NewSequence() *Sequence {
	return &Sequence{entries: make([]Entry, 0, 64)}
}

// Len reports the number of entries before the end marker.
func (s *Sequence) Len() int { return len(s.entries) }

// At returns the entry at pos.
func (s *Sequence) At(pos int) Entry {
	switch {
	case pos < 0:
		return Entry{Index: Pause}
	case pos >= len(s.entries):
		return Entry{Index: End}
	}
	return s.entries[pos]
}

// Index returns the phoneme index at pos.
func (s *Sequence) Index(pos int) uint8 { return s.At(pos).Index }

// Length returns the frame length at pos.
func (s *Sequence) Length(pos int) uint8 { return s.At(pos).Length }

// Stress returns the stress at pos.
func (s *Sequence) Stress(pos int) uint8 { return s.At(pos).Stress }

// SetIndex replaces the phoneme at pos. Positions outside the sequence are
// ignored.
func (s *Sequence) SetIndex(pos int, index uint8) {
	if s.valid(pos) {
		s.entries[pos].Index = index
	}
}

// SetLength replaces the frame length at pos.
func (s *Sequence) SetLength(pos int, length uint8) {
	if s.valid(pos) {
		s.entries[pos].Length = length
	}
}

// SetStress replaces the stress at pos.
func (s *Sequence) SetStress(pos int, stress uint8) {
	if s.valid(pos) {
		s.entries[pos].Stress = stress
	}
}

// Set replaces the whole entry at pos.
func (s *Sequence) Set(pos int, e Entry) {
	if s.valid(pos) {
		s.entries[pos] = e
	}
}

func (s *Sequence) valid(pos int) bool { return pos >= 0 && pos < len(s.entries) }

// Append adds an entry ahead of the end marker.
func (s *Sequence) Append(e Entry) error {
	return s.Insert(len(s.entries), e)
}

// Insert places e at pos, shifting later entries right by one.
func (s *Sequence) Insert(pos int, e Entry) error {
	if len(s.entries)+2 > Capacity {
		return fmt.Errorf("insert %d at %d: %w", e.Index, pos, ErrCapacityExceeded)
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.entries) {
		pos = len(s.entries)
	}
	s.entries = append(s.entries, Entry{})
	copy(s.entries[pos+1:], s.entries[pos:])
	s.entries[pos] = e
	return nil
}

// Entries returns a copy of the entries before the end marker.
func (s *Sequence) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Chunks splits the sequence at break markers and drops pauses. Each chunk
// is rendered on its own.
func (s *Sequence) Chunks() [][]Entry {
	var chunks [][]Entry
	var current []Entry
	for _, e := range s.entries {
		switch e.Index {
		case Pause:
		case Break:
			chunks = append(chunks, current)
			current = nil
		default:
			current = append(current, e)
		}
	}
	return append(chunks, current)
}

// Format renders the sequence as mnemonics with stress digits. Breaks print
// as '/', pauses as '_'.
func (s *Sequence) Format(set *tables.Set) string {
	var b strings.Builder
	for i, e := range s.entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch {
		case e.Index == Pause:
			b.WriteByte('_')
		case e.Index == Break:
			b.WriteByte('/')
		case int(e.Index) < tables.PhonemeCount:
			b.WriteString(set.Phonemes[e.Index].Mnemonic())
		default:
			fmt.Fprintf(&b, "#%d", e.Index)
		}
		if e.Stress != 0 {
			fmt.Fprintf(&b, "%d", e.Stress)
		}
	}
	return b.String()
}
