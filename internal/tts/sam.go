package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/loqalabs/loqa-sam/internal/config"
	"github.com/loqalabs/loqa-sam/internal/eventstore"
	"github.com/loqalabs/loqa-sam/internal/formant"
	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/reciter"
	"github.com/loqalabs/loqa-sam/internal/sam"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/loqalabs/loqa-sam/tts"

// Journal records finished synthesis requests.
type Journal interface {
	RecordUtterance(ctx context.Context, u eventstore.Utterance) error
}

type samSynth struct {
	engine  *sam.Engine
	voices  config.VoiceConfig
	journal Journal
	log     *slog.Logger
	tracer  trace.Tracer

	utterances metric.Int64Counter
	failures   metric.Int64Counter
	pcmBytes   metric.Int64Counter
	duration   metric.Float64Histogram
}

// NewSAMSynth returns a synthesizer that renders requests with engine,
// resolving voice names against voices. A nil journal disables journaling.
func NewSAMSynth(engine *sam.Engine, voices config.VoiceConfig, journal Journal, log *slog.Logger) (Synthesizer, error) {
	if _, err := formant.ParseTiming(voices.Timing); err != nil {
		return nil, err
	}
	s := &samSynth{
		engine:  engine,
		voices:  voices,
		journal: journal,
		log:     log.With(slog.String("component", "tts-sam")),
		tracer:  otel.Tracer(instrumentationName),
	}
	if err := s.initMetrics(otel.Meter(instrumentationName)); err != nil {
		return nil, fmt.Errorf("init tts metrics: %w", err)
	}
	return s, nil
}

func (s *samSynth) initMetrics(meter metric.Meter) error {
	var err error
	if s.utterances, err = meter.Int64Counter("loqa.tts.utterances", metric.WithDescription("Utterances synthesized")); err != nil {
		return err
	}
	if s.failures, err = meter.Int64Counter("loqa.tts.failures", metric.WithDescription("Synthesis requests that failed")); err != nil {
		return err
	}
	if s.pcmBytes, err = meter.Int64Counter("loqa.tts.pcm_bytes", metric.WithDescription("PCM bytes produced"), metric.WithUnit("By")); err != nil {
		return err
	}
	s.duration, err = meter.Float64Histogram("loqa.tts.synthesis.duration", metric.WithDescription("Wall time spent synthesizing"), metric.WithUnit("s"))
	return err
}

// VoiceOptions resolves a preset name into engine options. The empty name
// selects the default preset.
func VoiceOptions(voices config.VoiceConfig, name string) (sam.Options, error) {
	timing, err := formant.ParseTiming(voices.Timing)
	if err != nil {
		return sam.Options{}, err
	}
	preset, ok := voices.Preset(name)
	if !ok {
		return sam.Options{}, fmt.Errorf("%w: %q", ErrUnknownVoice, name)
	}
	return sam.Options{
		Pitch:  uint8(preset.Pitch),
		Speed:  uint8(preset.Speed),
		Mouth:  uint8(preset.Mouth),
		Throat: uint8(preset.Throat),
		Sing:   preset.Sing,
		Timing: timing,
	}, nil
}

func (s *samSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 4)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		voice := req.Voice
		if voice == "" {
			voice = s.voices.Default
		}
		ctx, span := s.tracer.Start(ctx, "sam.speak", trace.WithAttributes(
			attribute.String("tts.voice", voice),
			attribute.Bool("tts.phonetic", req.Phonetic),
			attribute.Int("tts.text_bytes", len(req.Text)),
		))
		defer span.End()

		rec := eventstore.Utterance{
			SessionID: req.SessionID,
			Voice:     voice,
			Text:      req.Text,
			Phonetic:  req.Phonetic,
		}
		start := time.Now()
		err := s.run(ctx, req, chunks, &rec)
		rec.Duration = time.Since(start)

		attrs := metric.WithAttributes(attribute.String("voice", voice))
		s.duration.Record(ctx, rec.Duration.Seconds(), attrs)
		span.SetAttributes(
			attribute.Int("tts.phonemes", rec.Phonemes),
			attribute.Int("tts.pcm_bytes", rec.PCMBytes),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.failures.Add(ctx, 1, attrs)
			rec.Error = err.Error()
			errs <- err
		} else {
			s.utterances.Add(ctx, 1, attrs)
			s.pcmBytes.Add(ctx, int64(rec.PCMBytes), attrs)
		}
		s.record(ctx, rec)
	}()
	return chunks, errs
}

// run speaks each text segment and forwards one chunk per breath group.
// The last chunk is held back so it can be marked final.
func (s *samSynth) run(ctx context.Context, req SynthRequest, out chan<- SynthChunk, rec *eventstore.Utterance) error {
	opts, err := VoiceOptions(s.voices, req.Voice)
	if err != nil {
		return err
	}
	segments, err := Segments(req.Text, req.Phonetic)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		segments = []string{""}
	}

	send := func(c SynthChunk) error {
		select {
		case out <- c:
			rec.Chunks++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var pending *SynthChunk
	queue := func(pcm []byte) error {
		if pending != nil {
			if err := send(*pending); err != nil {
				return err
			}
		}
		pending = &SynthChunk{
			SessionID:  req.SessionID,
			Sequence:   rec.Chunks,
			SampleRate: sam.SampleRate,
			Channels:   1,
			BitDepth:   8,
			PCM:        pcm,
		}
		return nil
	}

	for i, segment := range segments {
		if err := ctx.Err(); err != nil {
			return err
		}
		u, err := s.engine.SpeakWith([]byte(segment), req.Phonetic, opts)
		if err != nil {
			return fmt.Errorf("segment %d: %w", i, err)
		}
		rec.Phonemes += u.Phonemes
		rec.PCMBytes += len(u.PCM)

		from := 0
		for _, to := range u.Breaks {
			if to <= from {
				continue
			}
			if err := queue(u.PCM[from:to]); err != nil {
				return err
			}
			from = to
		}
		if from < len(u.PCM) {
			if err := queue(u.PCM[from:]); err != nil {
				return err
			}
		}
	}

	if pending == nil {
		if err := queue(nil); err != nil {
			return err
		}
	}
	pending.Final = true
	return send(*pending)
}

func (s *samSynth) record(ctx context.Context, rec eventstore.Utterance) {
	if s.journal == nil || rec.SessionID == "" {
		return
	}
	if err := s.journal.RecordUtterance(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Warn("failed to journal utterance", slogError(err))
	}
}

// Segments splits request text into pieces the engine accepts in one call.
// Phonetic text is split only at whitespace, so a mnemonic run longer than
// the phoneme buffer fails with sam.ErrCapacityExceeded instead of being cut
// mid-token.
func Segments(text string, phonetic bool) ([]string, error) {
	if !phonetic {
		return Segment(text, reciter.MaxInput), nil
	}
	return splitWords(text, phoneme.Capacity-1, false)
}

// Segment splits text at whitespace into pieces of at most limit bytes.
// Words longer than limit are cut.
func Segment(text string, limit int) []string {
	out, _ := splitWords(text, limit, true)
	return out
}

func splitWords(text string, limit int, cut bool) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, word := range strings.Fields(text) {
		if len(word) > limit && !cut {
			return nil, fmt.Errorf("phonetic run of %d bytes exceeds %d: %w", len(word), limit, sam.ErrCapacityExceeded)
		}
		for len(word) > limit {
			flush()
			out = append(out, word[:limit])
			word = word[limit:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(word) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	flush()
	return out, nil
}
