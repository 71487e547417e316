package sequencer

import (
	"time"
)

// Note is a single captured or scheduled note on the wall clock.
// A zero EndTime means the note is still open.
type Note struct {
	Pitch     uint8
	Velocity  uint8
	StartTime time.Time
	EndTime   time.Time
}

// Open reports whether the note has no end yet
func (n Note) Open() bool {
	return n.EndTime.IsZero()
}

// Tempo marks a qpm change at a point in time
type Tempo struct {
	Time time.Time
	QPM  float64
}

// NoteSequence is an ordered list of notes with tempo metadata. Times are
// absolute wall-clock times.
type NoteSequence struct {
	Tempos    []Tempo
	TotalTime time.Time
	Notes     []Note
}

// NewNoteSequence creates an empty sequence with a single tempo
func NewNoteSequence(qpm float64) *NoteSequence {
	return &NoteSequence{Tempos: []Tempo{{QPM: qpm}}}
}

// QPM returns the first tempo, or 0 if there is none
func (s *NoteSequence) QPM() float64 {
	if len(s.Tempos) == 0 {
		return 0
	}
	return s.Tempos[0].QPM
}

// AddNote appends a closed note and extends TotalTime to cover it
func (s *NoteSequence) AddNote(pitch, velocity uint8, start, end time.Time) {
	s.Notes = append(s.Notes, Note{Pitch: pitch, Velocity: velocity, StartTime: start, EndTime: end})
	if end.After(s.TotalTime) {
		s.TotalTime = end
	}
}

// Clone returns a deep copy
func (s *NoteSequence) Clone() *NoteSequence {
	c := &NoteSequence{TotalTime: s.TotalTime}
	if s.Tempos != nil {
		c.Tempos = append([]Tempo(nil), s.Tempos...)
	}
	if s.Notes != nil {
		c.Notes = append([]Note(nil), s.Notes...)
	}
	return c
}

// Shift returns a copy with every time moved by d. Zero times stay zero.
func (s *NoteSequence) Shift(d time.Duration) *NoteSequence {
	c := s.Clone()
	for i := range c.Tempos {
		c.Tempos[i].Time = shift(c.Tempos[i].Time, d)
	}
	for i := range c.Notes {
		c.Notes[i].StartTime = shift(c.Notes[i].StartTime, d)
		c.Notes[i].EndTime = shift(c.Notes[i].EndTime, d)
	}
	c.TotalTime = shift(c.TotalTime, d)
	return c
}

func shift(t time.Time, d time.Duration) time.Time {
	if t.IsZero() {
		return t
	}
	return t.Add(d)
}

// truncate closes open notes at end, drops everything from the first note
// starting after end, clips notes ending after end, and sets TotalTime.
func (s *NoteSequence) truncate(end time.Time) {
	for i := range s.Notes {
		n := &s.Notes[i]
		if n.StartTime.After(end) {
			s.Notes = s.Notes[:i]
			break
		}
		if n.Open() || n.EndTime.After(end) {
			n.EndTime = end
		}
	}
	s.TotalTime = end
}
