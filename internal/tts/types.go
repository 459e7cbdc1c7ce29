package tts

import (
	"context"
	"errors"
)

// ErrUnknownVoice is returned when a request names a preset that is not configured.
var ErrUnknownVoice = errors.New("unknown voice preset")

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	SessionID string
	Text      string
	Voice     string
	// Phonetic marks Text as phoneme mnemonics.
	Phonetic bool
}

// SynthChunk contains one breath group of PCM data.
type SynthChunk struct {
	SessionID  string
	Sequence   int
	SampleRate int
	Channels   int
	BitDepth   int
	PCM        []byte
	Final      bool
}

// Synthesizer is the contract for producing audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}
