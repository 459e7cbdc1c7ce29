package formant

import (
	"fmt"

	"github.com/loqalabs/loqa-sam/internal/phoneme"
)

// FrameCapacity is the number of frames one chunk may expand to.
const FrameCapacity = 256

// pitchPlaceholder frames are skipped when an inflection starts.
const pitchPlaceholder = 127

// Track names one of the per-frame synthesis parameters.
type Track int

const (
	Pitch Track = iota
	Freq1
	Freq2
	Freq3
	Amp1
	Amp2
	Amp3
	trackCount
)

var trackNames = [trackCount]string{"pitch", "freq1", "freq2", "freq3", "amp1", "amp2", "amp3"}

func (t Track) String() string {
	if t < 0 || t >= trackCount {
		return fmt.Sprintf("track(%d)", int(t))
	}
	return trackNames[t]
}

// frames holds the parameter tracks of one chunk. Positions are 8-bit and
// wrap around the buffer.
type frames struct {
	tracks [trackCount][FrameCapacity]uint8
	noise  [FrameCapacity]uint8
	count  int
}

func (f *frames) at(t Track, pos uint8) uint8 { return f.tracks[t][pos] }

func (f *frames) set(t Track, pos uint8, v uint8) { f.tracks[t][pos] = v }

// expand writes Length identical frames per phoneme.
func (r *Renderer) expand(chunk []phoneme.Entry) (*frames, error) {
	total := 0
	for _, e := range chunk {
		total += int(e.Length)
	}
	if total > FrameCapacity {
		return nil, fmt.Errorf("chunk of %d frames: %w", total, phoneme.ErrCapacityExceeded)
	}

	f := &frames{count: total}
	var pos uint8
	for _, e := range chunk {
		switch e.Index {
		case phoneme.Period:
			f.inflect(pos, 1)
		case phoneme.Query:
			f.inflect(pos, 0xFF)
		}

		row := r.row(e.Index)
		pitch := r.params.Pitch + r.stressPitch(e.Stress)
		for n := uint8(0); n < e.Length; n++ {
			f.set(Pitch, pos, pitch)
			f.set(Freq1, pos, r.freq(0, e.Index))
			f.set(Freq2, pos, r.freq(1, e.Index))
			f.set(Freq3, pos, r.freq(2, e.Index))
			f.set(Amp1, pos, row.Amp[0])
			f.set(Amp2, pos, row.Amp[1])
			f.set(Amp3, pos, row.Amp[2])
			f.noise[pos] = row.Noise
			pos++
		}
	}
	return f, nil
}

func (r *Renderer) stressPitch(stress uint8) uint8 {
	pitches := r.voice.set.StressPitch
	if i := int(stress) + 1; i < len(pitches) {
		return pitches[i]
	}
	return 0
}

// inflect ramps the pitch over the frames before end by delta per frame: 1
// rises into a period, 0xFF falls into a question mark. Frames holding 0xFF
// are stepped over without being counted.
func (f *frames) inflect(end uint8, delta uint8) {
	pos := end - 30
	if end <= 30 {
		pos = 0
	}
	for n := 0; n < FrameCapacity && f.at(Pitch, pos) == pitchPlaceholder; n++ {
		pos++
	}

	v := f.at(Pitch, pos)
	for {
		v += delta
		f.set(Pitch, pos, v)
		for {
			pos++
			if pos == end {
				return
			}
			if f.at(Pitch, pos) != 0xFF {
				break
			}
		}
	}
}

// blend interpolates every track across each phoneme boundary. The phoneme
// with the larger rank value decides how many frames each side gives up.
func (r *Renderer) blend(f *frames, chunk []phoneme.Entry) {
	var boundary uint8
	for i := 0; i+1 < len(chunk); i++ {
		cur, next := chunk[i], chunk[i+1]
		cr, nr := r.row(cur.Index), r.row(next.Index)

		var before, after uint8
		switch {
		case cr.BlendRank == nr.BlendRank:
			before, after = cr.OutBlend, nr.OutBlend
		case cr.BlendRank < nr.BlendRank:
			before, after = nr.InBlend, nr.OutBlend
		default:
			// Transitions are symmetric, so the left side's in and out swap.
			before, after = cr.OutBlend, cr.InBlend
		}

		boundary += cur.Length
		end := boundary + after
		start := boundary - before
		span := before + after
		if (span-2)&0x80 != 0 {
			continue
		}

		for t := Pitch; t < trackCount; t++ {
			width := span
			var delta uint8
			if t == Pitch {
				// Pitch runs from the middle of one phoneme to the middle of
				// the next.
				half, nextHalf := cur.Length>>1, next.Length>>1
				width = half + nextHalf
				delta = f.at(t, boundary+nextHalf) - f.at(t, boundary-half)
			} else {
				delta = f.at(t, end) - f.at(t, start)
			}
			if width == 0 {
				continue
			}
			f.interpolate(t, start, width, delta)
		}
	}
}

// interpolate walks width frames from start, adding the integer step of
// delta/width to each frame's predecessor and spreading the remainder with
// an error accumulator.
func (f *frames) interpolate(t Track, start, width, delta uint8) {
	signed := int(int8(delta))
	step := uint8(signed / int(width))
	magnitude := signed
	if magnitude < 0 {
		magnitude = -magnitude
	}
	remainder := uint8(magnitude % int(width))
	falling := delta&0x80 != 0

	var acc uint8
	pos, n := start, width
	for {
		v := f.at(t, pos) + step
		pos++
		n--
		if n == 0 {
			return
		}
		acc += remainder
		if acc >= width {
			acc -= width
			switch {
			case falling:
				v--
			case v != 0:
				v++
			}
		}
		f.set(t, pos, v)
	}
}

// contour lowers each frame's pitch by half its first formant.
func (f *frames) contour() {
	for i := range f.tracks[Pitch] {
		f.tracks[Pitch][i] -= f.tracks[Freq1][i] >> 1
	}
}

// rescale maps every amplitude through table. It reads only the frames and
// the table.
func (f *frames) rescale(table *[256]uint8) {
	for _, t := range []Track{Amp1, Amp2, Amp3} {
		for i, v := range f.tracks[t] {
			f.tracks[t][i] = table[v]
		}
	}
}
