package tables

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestBuiltinLoads(t *testing.T) {
	set, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if got := set.Phonemes[5].Mnemonic(); got != "IY" {
		t.Fatalf("row 5: want IY, got %q", got)
	}
	if got := set.Phonemes[32].Mnemonic(); got != "S" {
		t.Fatalf("row 32: want S, got %q", got)
	}
	if set.Flags(255) != EndFlags {
		t.Fatalf("end marker flags: got %#x", set.Flags(255))
	}
	if set.Flags(254) != 0 {
		t.Fatalf("break marker should have no flags")
	}
	if set.Class('A')&ClassVowel == 0 || set.Class('T')&ClassConsonant == 0 {
		t.Fatalf("letter classes not derived")
	}
	if set.Class('7')&ClassDigit == 0 || set.Class('7')&ClassRuleGroup == 0 {
		t.Fatalf("digit class missing rule group bit")
	}
	if set.Class(' ') != 0 {
		t.Fatalf("space must have no class")
	}
	if set.StressMarks != [9]byte{'*', '1', '2', '3', '4', '5', '6', '7', '8'} {
		t.Fatalf("stress marks: %q", set.StressMarks)
	}
}

func TestDefaultWaveTables(t *testing.T) {
	set, err := Builtin()
	if err != nil {
		t.Fatalf("builtin: %v", err)
	}
	if set.Sine[0] != 0 || set.Sine[64] != 0x70 || set.Sine[192] != 0x90 {
		t.Fatalf("sine extremes: %#x %#x %#x", set.Sine[0], set.Sine[64], set.Sine[192])
	}
	if set.Rectangle[0] != 0x90 || set.Rectangle[255] != 0x70 {
		t.Fatalf("rectangle halves wrong")
	}
	if set.AmplitudeRescale[15] != 0x0F || set.AmplitudeRescale[16] != 0 {
		t.Fatalf("amplitude rescale: %v", set.AmplitudeRescale[:17])
	}
	if set.NoiseBanks == ([5][256]uint8{}) {
		t.Fatalf("noise banks not generated")
	}
}

func TestParseRule(t *testing.T) {
	cases := []struct {
		text string
		want Rule
	}{
		{" (A.)=EH4Y.", Rule{Left: " ", Match: "A.", Right: "", Out: "EH4Y."}},
		{"#:(E) =", Rule{Left: "#:", Match: "E", Right: " ", Out: ""}},
		{"(I)^+:#=IH", Rule{Match: "I", Right: "^+:#", Out: "IH"}},
		{"(=)= IY4KWULZ", Rule{Match: "=", Out: " IY4KWULZ"}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, err := ParseRule(tc.text)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tc.want {
				t.Fatalf("want %+v, got %+v", tc.want, got)
			}
			if got.String() != tc.text {
				t.Fatalf("round trip: %q", got.String())
			}
		})
	}

	for _, bad := range []string{"A=B", "(A=B", "()=X", "(A)"} {
		if _, err := ParseRule(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func builtinDocument(t *testing.T) document {
	t.Helper()
	var doc document
	if err := yaml.Unmarshal(BuiltinYAML(), &doc); err != nil {
		t.Fatalf("unmarshal builtin: %v", err)
	}
	return doc
}

func reparse(t *testing.T, doc document) error {
	t.Helper()
	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, err = Parse(data)
	return err
}

func TestParseRejectsInvalidData(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*document)
	}{
		{"short phoneme table", func(d *document) { d.Phonemes = d.Phonemes[:80] }},
		{"unknown flag", func(d *document) { d.Phonemes[5].Flags = append(d.Phonemes[5].Flags, "whispered") }},
		{"byte overflow", func(d *document) { d.Phonemes[5].Length = 256 }},
		{"anchor renamed", func(d *document) { d.Phonemes[20].Name = "WW" }},
		{"missing letter group", func(d *document) { delete(d.Rules.Letters, "Q") }},
		{"unknown context symbol", func(d *document) { d.Rules.Letters["Z"] = []string{"!(Z)=Z"} }},
		{"noise bank out of range", func(d *document) { d.Phonemes[32].Noise = 0xF7 }},
		{"bad stress marks", func(d *document) { d.StressMarks = "12" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := builtinDocument(t)
			tc.mutate(&doc)
			err := reparse(t, doc)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestClassOverride(t *testing.T) {
	doc := builtinDocument(t)
	doc.Classes = map[string]int{"~": int(ClassRuleGroup)}
	doc.Rules.Punctuation = append(doc.Rules.Punctuation, "(~)= TIH4LDAH")
	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	set, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if set.Class('~') != ClassRuleGroup {
		t.Fatalf("override not applied: %#x", set.Class('~'))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.yaml")
	if err := os.WriteFile(path, BuiltinYAML(), 0o644); err != nil {
		t.Fatal(err)
	}
	set, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	builtin, _ := Builtin()
	if set.Phonemes != builtin.Phonemes {
		t.Fatalf("loaded phonemes differ from builtin")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
