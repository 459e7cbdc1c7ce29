package formant

import "fmt"

// Timing selects how sample groups are placed in the output.
type Timing int

const (
	// TimingHistorical places every 5-byte group at the timetable cursor,
	// letting later groups overwrite earlier ones.
	TimingHistorical Timing = iota
	// TimingAggregate advances the cursor identically but writes each output
	// slot once, keeping the first value.
	TimingAggregate
)

// ParseTiming maps a configuration name onto a Timing.
func ParseTiming(name string) (Timing, error) {
	switch name {
	case "", "historical":
		return TimingHistorical, nil
	case "aggregate":
		return TimingAggregate, nil
	}
	return 0, fmt.Errorf("unknown timing %q", name)
}

func (t Timing) String() string {
	switch t {
	case TimingHistorical:
		return "historical"
	case TimingAggregate:
		return "aggregate"
	}
	return fmt.Sprintf("timing(%d)", int(t))
}

// timetable[previous][current] is the cursor advance, in fiftieths of an
// output slot, between two kinds of sample group.
var timetable = [5][5]int{
	{162, 167, 167, 127, 128},
	{226, 60, 60, 0, 0},
	{225, 60, 59, 0, 0},
	{200, 0, 0, 54, 55},
	{199, 0, 0, 54, 54},
}

// Group kinds.
const (
	groupVoiced = iota
	groupNoiseLow
	groupNoiseHigh
	groupBuzzOn
	groupBuzzOff
)

// Sink collects the PCM of one utterance. The cursor and the last group kind
// carry over from chunk to chunk.
type Sink struct {
	timing  Timing
	buf     []byte
	cursor  int
	prev    int
	written int
}

// NewSink returns an empty sink.
func NewSink(timing Timing) *Sink {
	return &Sink{timing: timing, buf: make([]byte, 0, 4096)}
}

// Len reports the number of PCM bytes produced so far.
func (s *Sink) Len() int { return s.written }

// Bytes returns the PCM produced so far. The slice aliases the sink.
func (s *Sink) Bytes() []byte { return s.buf[:s.written] }

func (s *Sink) emit(kind int, samples [5]byte) {
	s.cursor += timetable[s.prev][kind]
	s.prev = kind
	at := s.cursor / 50
	for i, b := range samples {
		s.write(at+i, b)
	}
}

func (s *Sink) emitByte(kind int, b byte) {
	s.emit(kind, [5]byte{b, b, b, b, b})
}

func (s *Sink) write(pos int, b byte) {
	if pos < s.written && s.timing == TimingAggregate {
		return
	}
	for len(s.buf) <= pos {
		s.buf = append(s.buf, 0)
	}
	s.buf[pos] = b
	if pos >= s.written {
		s.written = pos + 1
	}
}
