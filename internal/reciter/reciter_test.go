package reciter

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

func builtin(t *testing.T) *tables.Set {
	t.Helper()
	set, err := tables.Builtin()
	if err != nil {
		t.Fatalf("builtin tables: %v", err)
	}
	return set
}

func TestTranscribe(t *testing.T) {
	tr := New(builtin(t))

	cases := []struct {
		name string
		text string
		want string
	}{
		{name: "empty", text: "", want: ""},
		{name: "word", text: "HELLO", want: "/HEHLOW"},
		{name: "lower case folds", text: "hello", want: "/HEHLOW"},
		{name: "multi letter match", text: "A.", want: "EH4Y."},
		{name: "decimal point", text: "1.5", want: " WAH4N POYNT FAY4V"},
		{name: "sentence period", text: "HELLO.", want: "/HEHLOW."},
		{name: "stops at bracket", text: "HELLO[THERE", want: "/HEHLOW"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tr.Transcribe([]byte(tc.text))
			if err != nil {
				t.Fatalf("transcribe %q: %v", tc.text, err)
			}
			want := append([]byte(tc.want), phoneme.Terminator)
			if !bytes.Equal(got, want) {
				t.Fatalf("want %q, got %q", want, got)
			}
		})
	}
}

func TestTranscribeOutputResolves(t *testing.T) {
	set := builtin(t)
	tr := New(set)
	r := phoneme.NewResolver(set)
	for _, text := range []string{"HELLO, MY NAME IS SAM.", "WHAT TIME IS IT?", "TESTING 1 2 3"} {
		out, err := tr.Transcribe([]byte(text))
		if err != nil {
			t.Fatalf("transcribe %q: %v", text, err)
		}
		if _, err := r.Resolve(out); err != nil {
			t.Fatalf("resolve %q (%q): %v", text, out, err)
		}
	}
}

func TestTranscribeUnmappedCharacter(t *testing.T) {
	cases := []struct {
		name  string
		char  byte
		class uint8
	}{
		{name: "no rule group", char: '\\', class: tables.ClassVowel},
		{name: "letter-like outside A-Z", char: '_', class: tables.ClassLetterLike},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if Fold(tc.char) != tc.char {
				t.Fatalf("%q does not survive folding", tc.char)
			}
			set := *builtin(t)
			set.Classes[tc.char] = tc.class
			tr := New(&set)
			out, err := tr.Transcribe([]byte{'H', 'I', tc.char})
			if !errors.Is(err, ErrTranscription) {
				t.Fatalf("expected ErrTranscription, got %q, %v", out, err)
			}
			if out != nil {
				t.Fatalf("partial output %q returned with error", out)
			}
		})
	}
}

func TestTranscribeEmptyIsTerminatorOnly(t *testing.T) {
	tr := New(builtin(t))
	out, err := tr.Transcribe(nil)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if !bytes.Equal(out, []byte{phoneme.Terminator}) {
		t.Fatalf("want bare terminator, got %q", out)
	}
}

func TestTranscribeNoMatchingRule(t *testing.T) {
	set := *builtin(t)
	set.LetterRules['Q'-'A'] = []tables.Rule{{Match: "QQ", Out: "K"}}
	tr := New(&set)
	if _, err := tr.Transcribe([]byte("Q")); !errors.Is(err, ErrTranscription) {
		t.Fatalf("expected ErrTranscription, got %v", err)
	}
}

func TestTranscribeCapacity(t *testing.T) {
	tr := New(builtin(t))
	_, err := tr.Transcribe([]byte(strings.Repeat("#", 30)))
	if !errors.Is(err, phoneme.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestTranscribeSpaceCutoff(t *testing.T) {
	tr := New(builtin(t))
	out, err := tr.Transcribe([]byte(strings.Repeat("# ", 40)))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if out[len(out)-1] != phoneme.Terminator {
		t.Fatalf("missing terminator")
	}
	// At most one spoken word and its separator past the cutoff.
	if len(out) > spaceCutoff+11 {
		t.Fatalf("output not cut at a word boundary: %d bytes", len(out))
	}
}

func TestSuffixContext(t *testing.T) {
	set := builtin(t)
	for _, tc := range []struct {
		word string
		ok   bool
	}{
		{"E ", true}, {"ER", true}, {"ES", true}, {"ED", true},
		{"ELY", true}, {"EFUL", true}, {"ING", true},
		{"EX", false}, {"IN ", false}, {"A", false},
	} {
		var in [256]byte
		copy(in[1:], tc.word)
		if _, ok := suffix(set, &in, 1); ok != tc.ok {
			t.Fatalf("%q: want %v, got %v", tc.word, tc.ok, ok)
		}
	}
}

func TestFold(t *testing.T) {
	for in, want := range map[byte]byte{'a': 'A', 'z': 'Z', 'A': 'A', '.': '.', 0xC1: 'A'} {
		if got := Fold(in); got != want {
			t.Fatalf("fold %q: want %q, got %q", in, want, got)
		}
	}
}
