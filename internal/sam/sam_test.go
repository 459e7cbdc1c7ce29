package sam

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-sam/internal/formant"
	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	set, err := tables.Builtin()
	if err != nil {
		t.Fatalf("builtin tables: %v", err)
	}
	return New(set, DefaultOptions(), nil)
}

func TestSpeakDeterministic(t *testing.T) {
	engine := newEngine(t)
	first, err := engine.Speak([]byte("HELLO, MY NAME IS SAM."), false)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	second, err := engine.Speak([]byte("HELLO, MY NAME IS SAM."), false)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(first.PCM) == 0 {
		t.Fatal("no PCM produced")
	}
	if !bytes.Equal(first.PCM, second.PCM) {
		t.Fatal("identical calls produced different PCM")
	}
	if first.SampleRate != SampleRate {
		t.Fatalf("sample rate = %d", first.SampleRate)
	}
}

func TestSpeakConcurrent(t *testing.T) {
	engine := newEngine(t)
	want, err := engine.Speak([]byte("THE QUICK BROWN FOX"), false)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := engine.Speak([]byte("THE QUICK BROWN FOX"), false)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(got.PCM, want.PCM) {
				errs <- errors.New("concurrent PCM differs")
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestSpeakEmpty(t *testing.T) {
	engine := newEngine(t)
	u, err := engine.Speak(nil, false)
	if err != nil {
		t.Fatalf("Speak(empty): %v", err)
	}
	if len(u.PCM) != 0 || u.Phonemes != 0 {
		t.Fatalf("empty text gave %d bytes, %d phonemes", len(u.PCM), u.Phonemes)
	}
}

func TestSpeakPhoneticTerminatorOnly(t *testing.T) {
	engine := newEngine(t)
	u, err := engine.Speak([]byte{phoneme.Terminator}, true)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if u.Phonemes != 0 {
		t.Fatalf("phonemes = %d, want 0", u.Phonemes)
	}
}

func TestSpeakErrors(t *testing.T) {
	engine := newEngine(t)

	if _, err := engine.Speak([]byte("HEH@LOW"), true); !errors.Is(err, ErrTokenization) {
		t.Fatalf("unknown token: got %v", err)
	}
	long := bytes.Repeat([]byte("AA"), 200)
	if _, err := engine.Speak(long, true); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("long phonetic input: got %v", err)
	}
}

func TestPhonemesRewritesTR(t *testing.T) {
	engine := newEngine(t)
	out, err := engine.Phonemes([]byte("TRAE4K"), true)
	if err != nil {
		t.Fatalf("Phonemes: %v", err)
	}
	if !strings.HasPrefix(out, "CH R") {
		t.Fatalf("Phonemes = %q, want CH R prefix", out)
	}
}

func TestPhonemesSyllabicL(t *testing.T) {
	engine := newEngine(t)
	out, err := engine.Phonemes([]byte("MEH4DUL"), true)
	if err != nil {
		t.Fatalf("Phonemes: %v", err)
	}
	if !strings.Contains(out, "AX L") {
		t.Fatalf("Phonemes = %q, want AX L", out)
	}
}

func TestBreaks(t *testing.T) {
	engine := newEngine(t)
	u, err := engine.Speak([]byte("HELLO. HOW ARE YOU?"), false)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(u.Breaks) < 2 {
		t.Fatalf("breaks = %v, want one per breath group", u.Breaks)
	}
	for i := 1; i < len(u.Breaks); i++ {
		if u.Breaks[i] < u.Breaks[i-1] {
			t.Fatalf("breaks not ascending: %v", u.Breaks)
		}
	}
	if last := u.Breaks[len(u.Breaks)-1]; last != len(u.PCM) {
		t.Fatalf("last break %d, pcm %d", last, len(u.PCM))
	}
}

func TestSetMouthThroat(t *testing.T) {
	engine := newEngine(t)
	before, err := engine.Speak([]byte("AA4"), true)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	engine.SetMouthThroat(190, 190)
	if opts := engine.Options(); opts.Mouth != 190 || opts.Throat != 190 {
		t.Fatalf("options not updated: %+v", opts)
	}
	after, err := engine.Speak([]byte("AA4"), true)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if bytes.Equal(before.PCM, after.PCM) {
		t.Fatal("mouth and throat change had no effect")
	}
}

func TestSpeakWithMatchesSetOptions(t *testing.T) {
	engine := newEngine(t)
	opts := Options{Pitch: 60, Speed: 92, Mouth: 190, Throat: 190, Timing: formant.TimingAggregate}
	with, err := engine.SpeakWith([]byte("ROBOT"), false, opts)
	if err != nil {
		t.Fatalf("SpeakWith: %v", err)
	}
	engine.SetOptions(opts)
	set, err := engine.Speak([]byte("ROBOT"), false)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if !bytes.Equal(with.PCM, set.PCM) {
		t.Fatal("SpeakWith and SetOptions disagree")
	}
}

func TestPackageSpeak(t *testing.T) {
	engine := newEngine(t)
	want, err := engine.Speak([]byte("HELLO"), false)
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	got, err := Speak([]byte("HELLO"), false, DefaultOptions())
	if err != nil {
		t.Fatalf("package Speak: %v", err)
	}
	if !bytes.Equal(got.PCM, want.PCM) {
		t.Fatal("package Speak differs from engine")
	}
}

func TestDuration(t *testing.T) {
	u := &Utterance{PCM: make([]byte, SampleRate/2), SampleRate: SampleRate}
	if got := u.Duration(); got != 500*time.Millisecond {
		t.Fatalf("Duration = %v", got)
	}
}
