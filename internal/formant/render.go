package formant

import (
	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

// Params are the per-utterance voice controls that are not baked into a
// Voice.
type Params struct {
	Pitch uint8
	Speed uint8
	// Sing keeps the pitch flat instead of following the first formant.
	Sing bool
}

// DefaultParams returns the classic pitch and speed.
func DefaultParams() Params {
	return Params{Pitch: DefaultPitch, Speed: DefaultSpeed}
}

// Renderer turns chunks into PCM. A Renderer holds no per-chunk state and
// may be used from several goroutines as long as each has its own Sink.
type Renderer struct {
	voice  *Voice
	params Params
}

// NewRenderer binds a voice to a set of params.
func NewRenderer(v *Voice, p Params) *Renderer {
	return &Renderer{voice: v, params: p}
}

// Voice returns the voice the renderer draws frequencies from.
func (r *Renderer) Voice() *Voice { return r.voice }

// Params returns the renderer's params.
func (r *Renderer) Params() Params { return r.params }

func (r *Renderer) row(index uint8) tables.Phoneme {
	if int(index) >= tables.PhonemeCount {
		return tables.Phoneme{}
	}
	return r.voice.set.Phonemes[index]
}

func (r *Renderer) freq(k int, index uint8) uint8 {
	if int(index) >= tables.PhonemeCount {
		return 0
	}
	return r.voice.freq[k][index]
}

// Render synthesizes one chunk into sink. A chunk is rendered on its own:
// nothing but the sink's cursor carries over to the next one.
func (r *Renderer) Render(chunk []phoneme.Entry, sink *Sink) error {
	if len(chunk) == 0 {
		return nil
	}
	f, err := r.prepare(chunk)
	if err != nil {
		return err
	}
	if f.count == 0 {
		return nil
	}
	r.synthesize(f, sink)
	return nil
}

// prepare expands chunk into frames and shapes them for synthesis.
func (r *Renderer) prepare(chunk []phoneme.Entry) (*frames, error) {
	f, err := r.expand(chunk)
	if err != nil || f.count == 0 {
		return f, err
	}
	r.blend(f, chunk)
	if !r.params.Sing {
		f.contour()
	}
	f.rescale(&r.voice.set.AmplitudeRescale)
	return f, nil
}

// synthesize drives the oscillators frame by frame. The oscillators restart
// at every glottal pulse; noise frames replace or interleave with them.
func (r *Renderer) synthesize(f *frames, sink *Sink) {
	var (
		phase    [3]uint8
		frame    uint8
		noisePos uint8
	)
	remaining := f.count
	speed := DefaultSpeed
	pulse := f.at(Pitch, 0)
	countdown := pulse - pulse>>2

	for {
		flag := f.noise[frame]
		advanced := false
		if flag&0xF8 != 0 {
			r.unvoiced(flag, sink)
			pulse = 1
			frame += 2
			remaining -= 2
			advanced = true
		} else {
			sink.emit(groupVoiced, r.tick(f, frame, phase))
			speed--
			if speed == 0 {
				frame++
				remaining--
				advanced = true
			}
		}
		if advanced {
			if remaining <= 0 {
				return
			}
			speed = r.params.Speed
		}

		pulse--
		if pulse == 0 {
			pulse = f.at(Pitch, frame)
			countdown = pulse - pulse>>2
			phase = [3]uint8{}
			continue
		}

		countdown--
		if countdown != 0 || flag == 0 {
			phase[0] += f.at(Freq1, frame)
			phase[1] += f.at(Freq2, frame)
			phase[2] += f.at(Freq3, frame)
			continue
		}

		r.voiced(flag, f.at(Pitch, frame), &noisePos, sink)
		pulse = f.at(Pitch, frame)
		countdown = pulse - pulse>>2
		phase = [3]uint8{}
	}
}

// tick mixes five samples of the two sine formants and the rectangular third
// formant. Phases advance in 8.8 fixed point.
func (r *Renderer) tick(f *frames, frame uint8, phase [3]uint8) [5]byte {
	set := r.voice.set
	a1 := int(f.at(Amp1, frame) & 15)
	a2 := int(f.at(Amp2, frame) & 15)
	a3 := int(f.at(Amp3, frame) & 15)
	p1, p2, p3 := uint32(phase[0])<<8, uint32(phase[1])<<8, uint32(phase[2])<<8
	d1, d2, d3 := uint32(f.at(Freq1, frame))*64, uint32(f.at(Freq2, frame))*64, uint32(f.at(Freq3, frame))*64

	var out [5]byte
	for k := range out {
		mix := int(int8(set.Sine[uint8(p1>>8)]))*a1 +
			int(int8(set.Sine[uint8(p2>>8)]))*a2 +
			int(int8(set.Rectangle[uint8(p3>>8)]))*a3
		out[k] = byte(mix/32 + 128)
		p1 += d1
		p2 += d2
		p3 += d3
	}
	return out
}

// unvoiced plays a noise bank from the offset encoded in the flag's high
// bits to the end of the bank, one output group per bit.
func (r *Renderer) unvoiced(flag uint8, sink *Sink) {
	set := r.voice.set
	bank := int(flag&7) - 1
	if bank < 0 || bank >= len(set.NoiseBanks) {
		return
	}
	level := set.NoiseLevels[bank]
	for y := ^(flag & 0xF8); ; {
		bits := set.NoiseBanks[bank][y]
		for i := 0; i < 8; i++ {
			if bits&0x80 == 0 {
				sink.emitByte(groupNoiseLow, (level&15)*16)
				if level != 0 {
					bits <<= 1
					continue
				}
			}
			sink.emitByte(groupNoiseHigh, 0x50)
			bits <<= 1
		}
		y++
		if y == 0 {
			return
		}
	}
}

// voiced interleaves a short burst of noise with the glottal pulse. The
// read position carries over between bursts within a chunk.
func (r *Renderer) voiced(flag, pitch uint8, pos *uint8, sink *Sink) {
	set := r.voice.set
	bank := int(flag&7) - 1
	if bank < 0 || bank >= len(set.NoiseBanks) {
		return
	}
	for count := ^(pitch >> 4); ; {
		bits := set.NoiseBanks[bank][*pos]
		for i := 0; i < 8; i++ {
			if bits&0x80 != 0 {
				sink.emitByte(groupBuzzOn, 0xA0)
			} else {
				sink.emitByte(groupBuzzOff, 0x60)
			}
			bits <<= 1
		}
		*pos++
		count++
		if count == 0 {
			return
		}
	}
}
