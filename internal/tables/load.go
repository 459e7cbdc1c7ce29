package tables

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type document struct {
	StressMarks string         `yaml:"stress_marks"`
	Classes     map[string]int `yaml:"classes"`
	Phonemes    []phonemeRow   `yaml:"phonemes"`
	Rules       ruleGroups     `yaml:"rules"`
	Render      renderTables   `yaml:"render"`
}

type phonemeRow struct {
	Name     string   `yaml:"name"`
	Flags    []string `yaml:"flags"`
	Length   int      `yaml:"length"`
	Stressed int      `yaml:"stressed"`
	Rank     int      `yaml:"rank"`
	In       int      `yaml:"in"`
	Out      int      `yaml:"out"`
	Freq     []int    `yaml:"freq"`
	Amp      []int    `yaml:"amp"`
	Noise    int      `yaml:"noise"`
}

type ruleGroups struct {
	Punctuation []string            `yaml:"punctuation"`
	Letters     map[string][]string `yaml:"letters"`
}

type renderTables struct {
	StressPitch     []int    `yaml:"stress_pitch"`
	NoiseLevels     []int    `yaml:"noise_levels"`
	Amplitude       []int    `yaml:"amplitude"`
	NoiseBanks      []string `yaml:"noise_banks"`
	Sine            []int    `yaml:"sine"`
	Rectangle       []int    `yaml:"rectangle"`
	Mouth           []int    `yaml:"mouth"`
	Throat          []int    `yaml:"throat"`
	MouthDiphthong  []int    `yaml:"mouth_diphthong"`
	ThroatDiphthong []int    `yaml:"throat_diphthong"`
}

// Load reads and validates a table set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tables: %w", err)
	}
	set, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Parse decodes a YAML table document. Render tables that are omitted fall
// back to the built-in defaults.
func Parse(data []byte) (*Set, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	set := &Set{}
	if err := doc.decode(set); err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func (d *document) decode(set *Set) error {
	marks := d.StressMarks
	if marks == "" {
		marks = defaultStressMarks
	}
	if len(marks) != len(set.StressMarks) {
		return invalidf("stress_marks: want %d characters, got %d", len(set.StressMarks), len(marks))
	}
	copy(set.StressMarks[:], marks)

	set.Classes = defaultClasses()
	for key, value := range d.Classes {
		if len(key) != 1 {
			return invalidf("classes: key %q must be a single character", key)
		}
		b, err := byteOf("classes."+key, value)
		if err != nil {
			return err
		}
		set.Classes[key[0]] = b
	}

	if len(d.Phonemes) != PhonemeCount {
		return invalidf("phonemes: want %d rows, got %d", PhonemeCount, len(d.Phonemes))
	}
	for i, row := range d.Phonemes {
		p, err := row.decode(fmt.Sprintf("phonemes[%d]", i))
		if err != nil {
			return err
		}
		set.Phonemes[i] = p
	}

	for i, text := range d.Rules.Punctuation {
		rule, err := ParseRule(text)
		if err != nil {
			return invalidf("rules.punctuation[%d]: %v", i, err)
		}
		set.PunctuationRules = append(set.PunctuationRules, rule)
	}
	for letter, group := range d.Rules.Letters {
		if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
			return invalidf("rules.letters: key %q is not an upper-case letter", letter)
		}
		for i, text := range group {
			rule, err := ParseRule(text)
			if err != nil {
				return invalidf("rules.letters.%s[%d]: %v", letter, i, err)
			}
			set.LetterRules[letter[0]-'A'] = append(set.LetterRules[letter[0]-'A'], rule)
		}
	}

	return d.Render.decode(set)
}

func (row phonemeRow) decode(field string) (Phoneme, error) {
	var p Phoneme
	switch len(row.Name) {
	case 1:
		p.Name = [2]byte{row.Name[0], '*'}
	case 2:
		p.Name = [2]byte{row.Name[0], row.Name[1]}
	default:
		return p, invalidf("%s.name: %q must be one or two characters", field, row.Name)
	}
	for _, name := range row.Flags {
		flag, ok := flagNames[strings.ToLower(name)]
		if !ok {
			return p, invalidf("%s.flags: unknown flag %q", field, name)
		}
		p.Flags |= flag
	}
	var err error
	scalars := []struct {
		dst   *uint8
		value int
		name  string
	}{
		{&p.Length, row.Length, "length"},
		{&p.StressedLength, row.Stressed, "stressed"},
		{&p.BlendRank, row.Rank, "rank"},
		{&p.InBlend, row.In, "in"},
		{&p.OutBlend, row.Out, "out"},
		{&p.Noise, row.Noise, "noise"},
	}
	for _, s := range scalars {
		if *s.dst, err = byteOf(field+"."+s.name, s.value); err != nil {
			return p, err
		}
	}
	if err := fillBytes(p.Freq[:], row.Freq, field+".freq", false); err != nil {
		return p, err
	}
	if err := fillBytes(p.Amp[:], row.Amp, field+".amp", false); err != nil {
		return p, err
	}
	return p, nil
}

func (r renderTables) decode(set *Set) error {
	set.StressPitch = defaultStressPitch
	set.NoiseLevels = defaultNoiseLevels
	set.Mouth = defaultMouth
	set.Throat = defaultThroat
	set.MouthDiphthong = defaultMouthDiphthong
	set.ThroatDiphthong = defaultThroatDiphthong
	set.AmplitudeRescale = defaultAmplitudeRescale()
	set.Sine = defaultSine()
	set.Rectangle = defaultRectangle()
	set.NoiseBanks = defaultNoiseBanks()

	fixed := []struct {
		dst     []uint8
		src     []int
		name    string
		partial bool
	}{
		{set.StressPitch[:], r.StressPitch, "render.stress_pitch", false},
		{set.NoiseLevels[:], r.NoiseLevels, "render.noise_levels", false},
		{set.Mouth[:], r.Mouth, "render.mouth", false},
		{set.Throat[:], r.Throat, "render.throat", false},
		{set.MouthDiphthong[:], r.MouthDiphthong, "render.mouth_diphthong", false},
		{set.ThroatDiphthong[:], r.ThroatDiphthong, "render.throat_diphthong", false},
		{set.Sine[:], r.Sine, "render.sine", false},
		{set.Rectangle[:], r.Rectangle, "render.rectangle", false},
	}
	for _, f := range fixed {
		if len(f.src) == 0 {
			continue
		}
		if err := fillBytes(f.dst, f.src, f.name, f.partial); err != nil {
			return err
		}
	}
	if len(r.Amplitude) > 0 {
		set.AmplitudeRescale = [256]uint8{}
		if err := fillBytes(set.AmplitudeRescale[:], r.Amplitude, "render.amplitude", true); err != nil {
			return err
		}
	}
	if len(r.NoiseBanks) > 0 {
		if len(r.NoiseBanks) != len(set.NoiseBanks) {
			return invalidf("render.noise_banks: want %d banks, got %d", len(set.NoiseBanks), len(r.NoiseBanks))
		}
		for i, encoded := range r.NoiseBanks {
			raw, err := hex.DecodeString(strings.Join(strings.Fields(encoded), ""))
			if err != nil {
				return invalidf("render.noise_banks[%d]: %v", i, err)
			}
			if len(raw) != len(set.NoiseBanks[i]) {
				return invalidf("render.noise_banks[%d]: want %d bytes, got %d", i, len(set.NoiseBanks[i]), len(raw))
			}
			copy(set.NoiseBanks[i][:], raw)
		}
	}
	return nil
}

// fillBytes copies src into dst. A partial source is zero padded; otherwise
// the lengths must agree.
func fillBytes(dst []uint8, src []int, field string, partial bool) error {
	if len(src) > len(dst) || (!partial && len(src) != len(dst)) {
		return invalidf("%s: want %d values, got %d", field, len(dst), len(src))
	}
	for i, v := range src {
		b, err := byteOf(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return err
		}
		dst[i] = b
	}
	return nil
}

func byteOf(field string, v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, invalidf("%s: %d is outside 0..255", field, v)
	}
	return uint8(v), nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
