package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go-midihub/debug"
	"go-midihub/midi"
)

// HubOption customises a Hub
type HubOption func(*Hub)

// WithMetronomeOptions sets the tick used by StartMetronome
func WithMetronomeOptions(opts ...MetronomeOption) HubOption {
	return func(h *Hub) { h.metronomeOpts = append(h.metronomeOpts, opts...) }
}

// WithPlayerOptions sets options for every player started by the hub
func WithPlayerOptions(opts ...PlayerOption) HubOption {
	return func(h *Hub) { h.playerOpts = append(h.playerOpts, opts...) }
}

// signal wakes every goroutine waiting on one message shape. The channel is
// closed and replaced on each matching message.
type signal struct {
	ch chan struct{}
}

// Hub routes one MIDI input to captors, signal waiters and, optionally, the
// output. It also owns the metronome and the players it starts. All messages
// are assumed to be on the same channel.
type Hub struct {
	in      midi.Input
	out     midi.Output
	texture Texture

	metronomeOpts []MetronomeOption
	playerOpts    []PlayerOption

	// mu guards everything below. It serialises dispatch, the signal
	// registry, passthrough state, the captor list and the
	// metronome/player handles. It is never held while calling another
	// locking Hub method.
	mu          sync.Mutex
	passthrough bool
	openNotes   map[uint8]uint8 // sounding pitch -> channel
	signals     map[midi.Signature]*signal
	captors     []*Captor
	metronome   *Metronome
	players     []*Player
	closed      bool
}

// NewHub takes ownership of in and out and starts listening on in
func NewHub(in midi.Input, out midi.Output, texture Texture, passthrough bool, opts ...HubOption) (*Hub, error) {
	h := &Hub{
		in:          in,
		out:         out,
		texture:     texture,
		passthrough: passthrough,
		openNotes:   make(map[uint8]uint8),
		signals:     make(map[midi.Signature]*signal),
	}
	for _, opt := range opts {
		opt(h)
	}
	if err := in.Listen(h.timestampAndHandle); err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return h, nil
}

// OpenHub opens the named ports on t and builds a Hub on them
func OpenHub(t midi.Transport, inName, outName string, texture Texture, passthrough bool, opts ...HubOption) (*Hub, error) {
	in, err := t.OpenInput(inName)
	if err != nil {
		return nil, err
	}
	out, err := t.OpenOutput(outName)
	if err != nil {
		in.Close()
		return nil, err
	}
	h, err := NewHub(in, out, texture, passthrough, opts...)
	if err != nil {
		in.Close()
		out.Close()
		return nil, err
	}
	return h, nil
}

func (h *Hub) Texture() Texture {
	return h.texture
}

func (h *Hub) Passthrough() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.passthrough
}

// SetPassthrough enables or disables forwarding. Disabling closes every note
// passthrough left sounding.
func (h *Hub) SetPassthrough(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.passthrough == on {
		return
	}
	h.closeOpenNotes()
	h.passthrough = on
}

// closeOpenNotes sends a note-off for every passthrough note. Caller holds mu.
func (h *Hub) closeOpenNotes() {
	for pitch, channel := range h.openNotes {
		h.send(midi.NewNoteOff(channel, pitch))
		delete(h.openNotes, pitch)
	}
}

// OpenNotes returns the pitches passthrough has left sounding
func (h *Hub) OpenNotes() []uint8 {
	h.mu.Lock()
	defer h.mu.Unlock()
	pitches := make([]uint8, 0, len(h.openNotes))
	for pitch := range h.openNotes {
		pitches = append(pitches, pitch)
	}
	sort.Slice(pitches, func(i, j int) bool { return pitches[i] < pitches[j] })
	return pitches
}

// timestampAndHandle is the input callback
func (h *Hub) timestampAndHandle(msg midi.Message) {
	if msg.Kind == midi.ProgramChange {
		return
	}
	msg.Time = time.Now()
	h.handleMessage(msg)
}

// handleMessage wakes signal waiters, feeds live captors and applies
// passthrough for one stamped message.
func (h *Hub) handleMessage(msg midi.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	if s, ok := h.signals[msg.Signature()]; ok {
		close(s.ch)
		s.ch = make(chan struct{})
	}

	live := h.captors[:0]
	for _, c := range h.captors {
		if !c.finished() {
			live = append(live, c)
		}
	}
	clear(h.captors[len(live):])
	h.captors = live
	for _, c := range h.captors {
		if err := c.Receive(msg.Copy()); err != nil {
			debug.Warn("hub", "deliver %v: %v", msg, err)
		}
	}

	if !h.passthrough {
		return
	}

	switch h.texture {
	case Polyphonic:
		if msg.IsNoteOff() {
			delete(h.openNotes, msg.Pitch)
		} else if msg.Kind == midi.NoteOn {
			h.openNotes[msg.Pitch] = msg.Channel
		}
		h.send(msg)

	case Monophonic:
		switch {
		case msg.IsNoteOff():
			if _, ok := h.openNotes[msg.Pitch]; ok {
				h.send(msg)
				delete(h.openNotes, msg.Pitch)
			}
		case msg.Kind == midi.NoteOn:
			h.closeOpenNotes()
			h.send(msg)
			h.openNotes[msg.Pitch] = msg.Channel
		default:
			h.send(msg)
		}
	}
}

func (h *Hub) send(msg midi.Message) {
	if err := h.out.Send(msg); err != nil {
		debug.Warn("hub", "send %v: %v", msg, err)
	}
}

// StartCapture starts a texture-appropriate captor. Without a stop time or
// stop signal the caller must Stop it.
func (h *Hub) StartCapture(qpm float64, start time.Time, opts ...CaptureOption) *Captor {
	c := NewCaptor(h.texture, qpm, start, opts...)
	h.startCaptor(c)
	return c
}

func (h *Hub) startCaptor(c *Captor) {
	h.mu.Lock()
	h.captors = append(h.captors, c)
	h.mu.Unlock()
	debug.Log("hub", "capture started qpm=%.1f texture=%s", c.sequence.QPM(), h.texture)
	c.Start()
}

// CaptureSequence captures until the stop time or signal and returns the
// result. At least one of the two is required.
func (h *Hub) CaptureSequence(qpm float64, start time.Time, opts ...CaptureOption) (*NoteSequence, error) {
	c := NewCaptor(h.texture, qpm, start, opts...)
	if c.stopTime.IsZero() && c.stopSignal == nil {
		return nil, ErrNoStopCondition
	}
	h.startCaptor(c)
	c.Wait()
	return c.CapturedSequence(time.Time{})
}

// WaitForSignal blocks until a message shaped like msg (time ignored) is
// dispatched, or ctx is done.
func (h *Hub) WaitForSignal(ctx context.Context, msg midi.Message) error {
	sig := msg.Signature()

	h.mu.Lock()
	s, ok := h.signals[sig]
	if !ok {
		s = &signal{ch: make(chan struct{})}
		h.signals[sig] = s
	}
	ch := s.ch
	h.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartMetronome starts, or restarts, the metronome
func (h *Hub) StartMetronome(start time.Time, qpm float64) {
	m := NewMetronome(h.out, start, qpm, h.metronomeOpts...)

	h.mu.Lock()
	prev := h.metronome
	h.metronome = m
	h.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	m.Start()
	debug.Log("hub", "metronome started qpm=%.1f", qpm)
}

// StopMetronome stops the metronome if it is running
func (h *Hub) StopMetronome() {
	h.mu.Lock()
	m := h.metronome
	h.metronome = nil
	h.mu.Unlock()

	if m != nil {
		m.Stop()
	}
}

// MetronomeRunning reports whether a metronome is active
func (h *Hub) MetronomeRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.metronome != nil
}

// StartPlayback plays seq on the output. With stayAlive the player waits
// for UpdateSequence after the last note until it is stopped.
func (h *Hub) StartPlayback(seq *NoteSequence, stayAlive bool) (*Player, error) {
	p, err := NewPlayer(h.out, seq, stayAlive, h.playerOpts...)
	if err != nil {
		return nil, err
	}
	p.Start()

	h.mu.Lock()
	live := h.players[:0]
	for _, other := range h.players {
		select {
		case <-other.Done():
		default:
			live = append(live, other)
		}
	}
	clear(h.players[len(live):])
	h.players = append(live, p)
	h.mu.Unlock()
	return p, nil
}

// Close stops listening, stops everything the hub started, silences
// passthrough notes and closes both ports.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	captors := h.captors
	players := h.players
	h.captors, h.players = nil, nil
	h.mu.Unlock()

	inErr := h.in.Close()
	h.StopMetronome()
	for _, c := range captors {
		if err := c.Stop(time.Time{}); err != nil && !errors.Is(err, ErrCaptorNotRunning) {
			debug.Warn("hub", "stop captor: %v", err)
		}
	}
	for _, p := range players {
		p.Stop()
	}

	h.mu.Lock()
	h.closeOpenNotes()
	h.mu.Unlock()

	return errors.Join(inErr, h.out.Close())
}
