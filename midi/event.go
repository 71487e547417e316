package midi

import (
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Kind identifies the shape of a MIDI message as far as the hub cares
type Kind uint8

const (
	Other Kind = iota
	NoteOn
	NoteOff
	ProgramChange
)

func (k Kind) String() string {
	switch k {
	case NoteOn:
		return "note_on"
	case NoteOff:
		return "note_off"
	case ProgramChange:
		return "program_change"
	default:
		return "other"
	}
}

// Message is a single MIDI message stamped with its wall-clock arrival time.
// A zero Time means the message has not been dispatched yet.
type Message struct {
	Kind     Kind
	Channel  uint8
	Pitch    uint8
	Velocity uint8
	Data     []byte // raw bytes, only for ProgramChange and Other
	Time     time.Time
}

// Signature is the time-erased identity of a message, usable as a map key
type Signature struct {
	Kind     Kind
	Channel  uint8
	Pitch    uint8
	Velocity uint8
	Data     string
}

// NewNoteOn builds an unstamped note-on
func NewNoteOn(channel, pitch, velocity uint8) Message {
	return Message{Kind: NoteOn, Channel: channel, Pitch: pitch, Velocity: velocity}
}

// NewNoteOff builds an unstamped note-off
func NewNoteOff(channel, pitch uint8) Message {
	return Message{Kind: NoteOff, Channel: channel, Pitch: pitch}
}

// IsNoteOn reports a note-on with non-zero velocity
func (m Message) IsNoteOn() bool {
	return m.Kind == NoteOn && m.Velocity > 0
}

// IsNoteOff reports a note-off, including the velocity-0 note-on form
func (m Message) IsNoteOff() bool {
	return m.Kind == NoteOff || (m.Kind == NoteOn && m.Velocity == 0)
}

// Copy returns a message that shares no memory with m
func (m Message) Copy() Message {
	if m.Data != nil {
		m.Data = append([]byte(nil), m.Data...)
	}
	return m
}

// At returns a copy of m stamped with t
func (m Message) At(t time.Time) Message {
	c := m.Copy()
	c.Time = t
	return c
}

func (m Message) Signature() Signature {
	return Signature{
		Kind:     m.Kind,
		Channel:  m.Channel,
		Pitch:    m.Pitch,
		Velocity: m.Velocity,
		Data:     string(m.Data),
	}
}

func (m Message) String() string {
	switch m.Kind {
	case NoteOn, NoteOff:
		return fmt.Sprintf("%s channel=%d note=%d velocity=%d", m.Kind, m.Channel, m.Pitch, m.Velocity)
	default:
		return fmt.Sprintf("%s channel=%d data=% X", m.Kind, m.Channel, m.Data)
	}
}

// FromGomidi converts a raw gomidi message
func FromGomidi(msg gomidi.Message) Message {
	var channel, key, velocity, program uint8
	switch {
	case msg.GetNoteOn(&channel, &key, &velocity):
		return Message{Kind: NoteOn, Channel: channel, Pitch: key, Velocity: velocity}
	case msg.GetNoteOff(&channel, &key, &velocity):
		return Message{Kind: NoteOff, Channel: channel, Pitch: key, Velocity: velocity}
	case msg.GetProgramChange(&channel, &program):
		return Message{Kind: ProgramChange, Channel: channel, Data: append([]byte(nil), msg.Bytes()...)}
	}
	m := Message{Kind: Other, Data: append([]byte(nil), msg.Bytes()...)}
	if msg.GetChannel(&channel) {
		m.Channel = channel
	}
	return m
}

// Gomidi converts back to the wire representation
func (m Message) Gomidi() gomidi.Message {
	switch m.Kind {
	case NoteOn:
		return gomidi.NoteOn(m.Channel, m.Pitch, m.Velocity)
	case NoteOff:
		if m.Velocity > 0 {
			return gomidi.NoteOffVelocity(m.Channel, m.Pitch, m.Velocity)
		}
		return gomidi.NoteOff(m.Channel, m.Pitch)
	default:
		return gomidi.Message(append([]byte(nil), m.Data...))
	}
}
