package sequencer

import (
	"fmt"
	"strings"

	"go-midihub/midi"
)

// Texture is how many notes may sound at once during capture and passthrough
type Texture int

const (
	Monophonic Texture = iota + 1
	Polyphonic
)

func (t Texture) String() string {
	switch t {
	case Monophonic:
		return "monophonic"
	case Polyphonic:
		return "polyphonic"
	default:
		return fmt.Sprintf("Texture(%d)", int(t))
	}
}

// ParseTexture accepts "monophonic"/"mono" and "polyphonic"/"poly"
func ParseTexture(s string) (Texture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monophonic", "mono":
		return Monophonic, nil
	case "polyphonic", "poly":
		return Polyphonic, nil
	}
	return 0, fmt.Errorf("unknown texture %q", s)
}

// noteTracker folds one message into the sequence being captured.
// Called with the captor's lock held.
type noteTracker interface {
	capture(seq *NoteSequence, msg midi.Message)
}

func newNoteTracker(t Texture) noteTracker {
	if t == Monophonic {
		return &monophonicTracker{open: -1}
	}
	return &polyphonicTracker{open: make(map[uint8]int)}
}

// monophonicTracker keeps at most one open note
type monophonicTracker struct {
	open int // index into seq.Notes, -1 if none
}

func (mt *monophonicTracker) capture(seq *NoteSequence, msg midi.Message) {
	switch {
	case msg.IsNoteOff():
		if mt.open < 0 || seq.Notes[mt.open].Pitch != msg.Pitch {
			// not the sounding note
			return
		}
		seq.Notes[mt.open].EndTime = msg.Time
		mt.open = -1

	case msg.Kind == midi.NoteOn:
		if mt.open >= 0 {
			if seq.Notes[mt.open].Pitch == msg.Pitch {
				// repeat of the previous message
				return
			}
			seq.Notes[mt.open].EndTime = msg.Time
		}
		seq.Notes = append(seq.Notes, Note{Pitch: msg.Pitch, Velocity: msg.Velocity, StartTime: msg.Time})
		mt.open = len(seq.Notes) - 1
	}
}

// polyphonicTracker keeps one open note per pitch
type polyphonicTracker struct {
	open map[uint8]int // pitch -> index into seq.Notes
}

func (pt *polyphonicTracker) capture(seq *NoteSequence, msg midi.Message) {
	switch {
	case msg.IsNoteOff():
		i, ok := pt.open[msg.Pitch]
		if !ok {
			return
		}
		seq.Notes[i].EndTime = msg.Time
		delete(pt.open, msg.Pitch)

	case msg.Kind == midi.NoteOn:
		if _, ok := pt.open[msg.Pitch]; ok {
			return
		}
		seq.Notes = append(seq.Notes, Note{Pitch: msg.Pitch, Velocity: msg.Velocity, StartTime: msg.Time})
		pt.open[msg.Pitch] = len(seq.Notes) - 1
	}
}
