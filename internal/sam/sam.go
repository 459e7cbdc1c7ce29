// Package sam wires the transcriber, the phoneme resolver, the rule engine
// and the formant renderer into a single speak operation.
package sam

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loqalabs/loqa-sam/internal/formant"
	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/phonology"
	"github.com/loqalabs/loqa-sam/internal/reciter"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

// Errors callers can test for with errors.Is.
var (
	ErrTranscription    = reciter.ErrTranscription
	ErrTokenization     = phoneme.ErrTokenization
	ErrCapacityExceeded = phoneme.ErrCapacityExceeded
)

// SampleRate of every utterance.
const SampleRate = formant.SampleRate

// Options are the voice controls of an utterance.
type Options struct {
	Pitch  uint8
	Speed  uint8
	Mouth  uint8
	Throat uint8
	Sing   bool
	Timing formant.Timing
}

// DefaultOptions returns the classic voice.
func DefaultOptions() Options {
	return Options{
		Pitch:  formant.DefaultPitch,
		Speed:  formant.DefaultSpeed,
		Mouth:  formant.DefaultMouth,
		Throat: formant.DefaultThroat,
	}
}

func (o Options) params() formant.Params {
	return formant.Params{Pitch: o.Pitch, Speed: o.Speed, Sing: o.Sing}
}

// Utterance is the rendered result of one speak call.
type Utterance struct {
	// PCM is mono 8-bit unsigned audio at SampleRate.
	PCM        []byte
	SampleRate int
	// Breaks holds the PCM offset at which each breath group ended.
	Breaks   []int
	Phonemes int
}

// Duration reports the playing time of the PCM.
func (u *Utterance) Duration() time.Duration {
	if u.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(u.PCM)) * time.Second / time.Duration(u.SampleRate)
}

// Engine speaks with one table set. It is safe for concurrent use; every
// call works on its own buffers.
type Engine struct {
	set      *tables.Set
	reciter  *reciter.Transcriber
	resolver *phoneme.Resolver
	rules    *phonology.Engine
	logger   *slog.Logger

	mu    sync.RWMutex
	opts  Options
	voice *formant.Voice
}

// New builds an engine. A nil logger discards output.
func New(set *tables.Set, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{
		set:      set,
		reciter:  reciter.New(set),
		resolver: phoneme.NewResolver(set),
		rules:    phonology.New(set),
		logger:   logger.With(slog.String("component", "sam")),
		opts:     opts,
		voice:    formant.NewVoice(set, opts.Mouth, opts.Throat),
	}
}

// Tables returns the engine's table set.
func (e *Engine) Tables() *tables.Set { return e.set }

// Options returns the current voice controls.
func (e *Engine) Options() Options {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.opts
}

// SetOptions replaces the voice controls, rebuilding the formant table when
// mouth or throat change.
func (e *Engine) SetOptions(opts Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if opts.Mouth != e.opts.Mouth || opts.Throat != e.opts.Throat {
		e.voice = formant.NewVoice(e.set, opts.Mouth, opts.Throat)
	}
	e.opts = opts
}

// SetMouthThroat rebuilds the formant table for a new mouth and throat.
func (e *Engine) SetMouthThroat(mouth, throat uint8) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voice = formant.NewVoice(e.set, mouth, throat)
	e.opts.Mouth, e.opts.Throat = mouth, throat
}

// Speak renders text with the current options. With phonetic set, text is
// taken as a mnemonic stream and transcription is skipped.
func (e *Engine) Speak(text []byte, phonetic bool) (*Utterance, error) {
	e.mu.RLock()
	opts, voice := e.opts, e.voice
	e.mu.RUnlock()
	return e.speak(text, phonetic, opts, voice)
}

// SpeakWith renders text with opts instead of the current options.
func (e *Engine) SpeakWith(text []byte, phonetic bool, opts Options) (*Utterance, error) {
	e.mu.RLock()
	voice := e.voice
	e.mu.RUnlock()
	if voice.Mouth() != opts.Mouth || voice.Throat() != opts.Throat {
		voice = formant.NewVoice(e.set, opts.Mouth, opts.Throat)
	}
	return e.speak(text, phonetic, opts, voice)
}

func (e *Engine) speak(text []byte, phonetic bool, opts Options, voice *formant.Voice) (*Utterance, error) {
	seq, err := e.sequence(text, phonetic)
	if err != nil {
		return nil, err
	}

	renderer := formant.NewRenderer(voice, opts.params())
	sink := formant.NewSink(opts.Timing)
	chunks := seq.Chunks()
	breaks := make([]int, 0, len(chunks))
	for i, chunk := range chunks {
		if err := renderer.Render(chunk, sink); err != nil {
			return nil, fmt.Errorf("render chunk %d: %w", i, err)
		}
		breaks = append(breaks, sink.Len())
	}

	u := &Utterance{
		PCM:        sink.Bytes(),
		SampleRate: SampleRate,
		Breaks:     breaks,
		Phonemes:   seq.Len(),
	}
	e.logger.Debug("utterance synthesized",
		slog.Int("phonemes", u.Phonemes),
		slog.Int("chunks", len(chunks)),
		slog.Int("pcm_bytes", len(u.PCM)),
		slog.String("timing", opts.Timing.String()),
	)
	return u, nil
}

// Phonemes returns the timed phoneme sequence text turns into, formatted as
// mnemonics with stress digits and '/' at breath breaks.
func (e *Engine) Phonemes(text []byte, phonetic bool) (string, error) {
	seq, err := e.sequence(text, phonetic)
	if err != nil {
		return "", err
	}
	return seq.Format(e.set), nil
}

// Transcribe returns the mnemonic stream text transcribes to, without its
// terminator.
func (e *Engine) Transcribe(text []byte) (string, error) {
	out, err := e.reciter.Transcribe(text)
	if err != nil {
		return "", err
	}
	return string(out[:len(out)-1]), nil
}

func (e *Engine) sequence(text []byte, phonetic bool) (*phoneme.Sequence, error) {
	var stream []byte
	if phonetic {
		if len(text) >= phoneme.Capacity {
			return nil, fmt.Errorf("phonetic input of %d bytes: %w", len(text), ErrCapacityExceeded)
		}
		stream = make([]byte, 0, len(text)+1)
		stream = append(append(stream, text...), phoneme.Terminator)
	} else {
		out, err := e.reciter.Transcribe(text)
		if err != nil {
			return nil, err
		}
		stream = out
	}

	seq, err := e.resolver.Resolve(stream)
	if err != nil {
		return nil, err
	}
	if err := e.rules.Apply(seq); err != nil {
		return nil, err
	}
	return seq, nil
}

var (
	defaultOnce   sync.Once
	defaultEngine *Engine
	defaultErr    error
)

// Speak renders text with the built-in tables and opts.
func Speak(text []byte, phonetic bool, opts Options) (*Utterance, error) {
	defaultOnce.Do(func() {
		set, err := tables.Builtin()
		if err != nil {
			defaultErr = err
			return
		}
		defaultEngine = New(set, DefaultOptions(), nil)
	})
	if defaultErr != nil {
		return nil, defaultErr
	}
	return defaultEngine.SpeakWith(text, phonetic, opts)
}
