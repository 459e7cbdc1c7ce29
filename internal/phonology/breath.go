package phonology

import (
	"github.com/loqalabs/loqa-sam/internal/phoneme"
	"github.com/loqalabs/loqa-sam/internal/tables"
)

const (
	// breathThreshold is the accumulated frame count that forces a break.
	breathThreshold = 232
	// glottalLength is the frame length of a forced glottal stop.
	glottalLength = 4
)

// SplitPlosives expands each stop into closure and release rows: the two
// table rows after it, with their unstressed lengths and the stop's stress.
// An unvoiced plosive keeps its release folded in when the next sound holds
// the release or is /H or /X.
func (e *Engine) SplitPlosives(seq *phoneme.Sequence) error {
	for pos := 0; pos < seq.Len(); {
		index := seq.Index(pos)
		flags := e.set.Flags(index)
		if flags&tables.FlagStop == 0 {
			pos++
			continue
		}
		if flags&tables.FlagUnvoicedPlosive != 0 && e.holdsRelease(seq, pos) {
			pos++
			continue
		}
		stress := seq.Stress(pos)
		for k := uint8(1); k <= 2; k++ {
			part := phoneme.Entry{Index: index + k, Length: e.row(index + k).Length, Stress: stress}
			if err := seq.Insert(pos+int(k), part); err != nil {
				return err
			}
		}
		pos += 3
	}
	return nil
}

func (e *Engine) holdsRelease(seq *phoneme.Sequence, pos int) bool {
	next := pos + 1
	for seq.Index(next) == phoneme.Pause {
		next++
	}
	index := seq.Index(next)
	if index == phoneme.End {
		return false
	}
	return e.set.Flags(index)&tables.FlagHoldsRelease != 0 || index == phoneme.HH || index == phoneme.HX
}

// InsertBreaths partitions the sequence into breath groups. Punctuation ends
// a group. A group that runs to breathThreshold frames is cut at its last
// pause, which becomes a glottal stop; without a pause the stop is inserted
// ahead of the phoneme that crossed the threshold. The frame counter is an
// 8-bit accumulator and wraps.
func (e *Engine) InsertBreaths(seq *phoneme.Sequence) error {
	var frames uint8
	lastPause := -1
	groupStart := 0
	for pos := 0; pos < seq.Len(); {
		index := seq.Index(pos)
		frames += seq.Length(pos)

		if frames < breathThreshold {
			if index != phoneme.Break && e.set.Flags(index)&tables.FlagPunctuation != 0 {
				if err := seq.Insert(pos+1, phoneme.Entry{Index: phoneme.Break}); err != nil {
					return err
				}
				frames, lastPause = 0, -1
				pos += 2
				groupStart = pos
				continue
			}
			if index == phoneme.Pause {
				lastPause = pos
			}
			pos++
			continue
		}

		at := lastPause
		if at < 0 {
			if pos == groupStart {
				// A single phoneme past the threshold stays whole.
				frames = 0
				pos++
				continue
			}
			if err := seq.Insert(pos, phoneme.Entry{Index: phoneme.Q, Length: glottalLength}); err != nil {
				return err
			}
			at = pos
		} else {
			seq.Set(at, phoneme.Entry{Index: phoneme.Q, Length: glottalLength})
		}
		if err := seq.Insert(at+1, phoneme.Entry{Index: phoneme.Break}); err != nil {
			return err
		}
		frames, lastPause = 0, -1
		pos = at + 2
		groupStart = pos
	}
	return nil
}
