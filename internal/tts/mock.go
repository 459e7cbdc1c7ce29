package tts

import (
	"bytes"
	"context"
	"time"
)

// silence is the 8-bit unsigned midpoint.
const silence = 0x80

type mockSynth struct {
	sampleRate int
	channels   int
}

// NewMockSynth returns a synthesizer that answers every request with a short
// burst of silence.
func NewMockSynth(sampleRate, channels int) Synthesizer {
	return &mockSynth{sampleRate: sampleRate, channels: channels}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(10 * time.Millisecond):
		}
		chunks <- SynthChunk{
			SessionID:  req.SessionID,
			Sequence:   0,
			SampleRate: m.sampleRate,
			Channels:   m.channels,
			BitDepth:   8,
			PCM:        bytes.Repeat([]byte{silence}, m.sampleRate/100),
			Final:      true,
		}
	}()
	return chunks, errs
}
