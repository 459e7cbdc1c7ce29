// Package tables holds the static data that drives transcription, phoneme
// rewriting and rendering: the phoneme attribute table, the letter-to-sound
// rule groups, the character classes and the waveform tables.
//
// A Set is immutable once loaded and may be shared by any number of
// concurrent synthesis calls.
package tables

import "errors"

// ErrInvalid marks table data that failed validation.
var ErrInvalid = errors.New("invalid table data")

// PhonemeCount is the number of rows in the phoneme attribute table.
const PhonemeCount = 81

// Flags describe the articulatory class of a phoneme.
type Flags uint16

const (
	FlagUnvoicedPlosive Flags = 1 << iota
	FlagStop
	FlagVoiced
	// FlagHoldsRelease on the phoneme after an unvoiced plosive suppresses
	// the plosive's release burst.
	FlagHoldsRelease
	FlagDiphthong
	// FlagFront marks vowels that glide towards IY (and the front vowels a
	// preceding K or G stays fronted for).
	FlagFront
	FlagConsonant
	FlagVowel
	// FlagPunctuation doubles as the breath point.
	FlagPunctuation
	_
	FlagAlveolar
	FlagNasal
	FlagLiquid
	FlagFricative
)

var flagNames = map[string]Flags{
	"unvoiced_plosive": FlagUnvoicedPlosive,
	"stop":             FlagStop,
	"voiced":           FlagVoiced,
	"holds_release":    FlagHoldsRelease,
	"diphthong":        FlagDiphthong,
	"front":            FlagFront,
	"consonant":        FlagConsonant,
	"vowel":            FlagVowel,
	"punctuation":      FlagPunctuation,
	"alveolar":         FlagAlveolar,
	"nasal":            FlagNasal,
	"liquid":           FlagLiquid,
	"fricative":        FlagFricative,
}

// EndFlags are the flags reported for the end marker by lookahead checks.
const EndFlags = FlagConsonant | FlagUnvoicedPlosive

// Character class bits used by the letter-to-sound rules.
const (
	ClassDigit      uint8 = 1
	ClassRuleGroup  uint8 = 2 // routed to the punctuation rule group
	ClassAlveolar   uint8 = 4 // '@'
	ClassVoiced     uint8 = 8 // '.'
	ClassSibilant   uint8 = 16
	ClassConsonant  uint8 = 32
	ClassVowel      uint8 = 64
	ClassLetterLike uint8 = 128
)

// Phoneme is one row of the phoneme attribute table.
type Phoneme struct {
	// Name is the one or two letter mnemonic. A second byte of '*' marks a
	// single-letter entry.
	Name           [2]byte
	Flags          Flags
	Length         uint8
	StressedLength uint8
	BlendRank      uint8
	InBlend        uint8
	OutBlend       uint8
	Freq           [3]uint8
	Amp            [3]uint8
	// Noise selects a sampled consonant bank (low 3 bits, 1-based) and, in
	// the high 5 bits, the start offset of an unvoiced sample. Zero means
	// no sample.
	Noise uint8
}

// Mnemonic returns the printable name, dropping a trailing wildcard.
func (p Phoneme) Mnemonic() string {
	if p.Name[1] == '*' {
		return string(p.Name[:1])
	}
	return string(p.Name[:])
}

// Rule is one letter-to-sound rule written as LEFT(MATCH)RIGHT=OUT.
type Rule struct {
	Left  string
	Match string
	Right string
	Out   string
}

func (r Rule) String() string {
	return r.Left + "(" + r.Match + ")" + r.Right + "=" + r.Out
}

// Set is a complete, validated collection of tables.
type Set struct {
	Phonemes    [PhonemeCount]Phoneme
	StressMarks [9]byte
	Classes     [256]uint8

	PunctuationRules []Rule
	LetterRules      [26][]Rule

	StressPitch      [11]uint8
	NoiseLevels      [5]uint8
	NoiseBanks       [5][256]uint8
	AmplitudeRescale [256]uint8
	Sine             [256]uint8
	Rectangle        [256]uint8

	Mouth           [30]uint8
	Throat          [30]uint8
	MouthDiphthong  [6]uint8
	ThroatDiphthong [6]uint8
}

// Flags returns the flags of a phoneme index. Markers outside the table
// report no flags, except the end marker which reports EndFlags.
func (s *Set) Flags(index uint8) Flags {
	if index == 255 {
		return EndFlags
	}
	if int(index) >= PhonemeCount {
		return 0
	}
	return s.Phonemes[index].Flags
}

// Class returns the character class of a folded input byte.
func (s *Set) Class(c byte) uint8 {
	return s.Classes[c]
}

// anchors are rows the rewrite rules address by index.
var anchors = map[int]string{
	13: "AX", 16: "UX", 18: "RX", 19: "LX", 20: "WX", 21: "YX",
	23: "R*", 24: "L*", 27: "M*", 28: "N*", 30: "DX", 31: "Q*",
	32: "S*", 36: "/H", 37: "/X", 38: "Z*", 42: "CH", 44: "J*",
	53: "UW", 57: "D*", 60: "G*", 63: "GX", 69: "T*", 72: "K*",
	75: "KX", 78: "UL", 79: "UM", 80: "UN",
}
