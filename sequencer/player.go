package sequencer

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go-midihub/debug"
	"go-midihub/midi"
)

// PlayerOption customises a Player
type PlayerOption func(*Player)

// WithPlaybackChannel sets the MIDI channel notes are played on
func WithPlaybackChannel(channel uint8) PlayerOption {
	return func(p *Player) { p.channel = channel }
}

// Player plays a NoteSequence whose times are wall-clock times. The
// sequence can be replaced while playing when updates are allowed.
type Player struct {
	out     midi.Output
	channel uint8

	// mu guards queue, openNotes and allowUpdates
	mu           sync.Mutex
	queue        []midi.Message // ascending by Time
	openNotes    map[uint8]struct{}
	allowUpdates bool

	wake    chan struct{} // wakes the loop after the queue changed
	done    chan struct{}
	started atomic.Bool
}

// NewPlayer schedules seq for playback. With allowUpdates the player stays
// alive after the last note, waiting for UpdateSequence, until Stop.
func NewPlayer(out midi.Output, seq *NoteSequence, allowUpdates bool, opts ...PlayerOption) (*Player, error) {
	if len(seq.Tempos) != 1 {
		return nil, ErrMultipleTempos
	}
	p := &Player{
		out:       out,
		openNotes: make(map[uint8]struct{}),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.schedule(seq.Clone(), time.Now())
	p.allowUpdates = allowUpdates
	return p, nil
}

// Start launches the playback goroutine
func (p *Player) Start() {
	if p.started.Swap(true) {
		return
	}
	go p.run()
}

// Done is closed when playback has finished
func (p *Player) Done() <-chan struct{} {
	return p.done
}

// UpdateSequence replaces the pending schedule with seq from now on.
// Notes sounding now that seq neither continues nor restarts in time keep
// their previously scheduled note-off.
func (p *Player) UpdateSequence(seq *NoteSequence) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.allowUpdates {
		return ErrUpdatesDisabled
	}
	p.schedule(seq.Clone(), time.Now())
	p.interrupt()
	return nil
}

// schedule rebuilds the queue from seq. Caller holds mu.
func (p *Player) schedule(seq *NoteSequence, playhead time.Time) {
	var next []midi.Message

	continued := make(map[uint8]bool)
	reopened := make(map[uint8]time.Time)
	for _, n := range seq.Notes {
		if !n.StartTime.Before(playhead) {
			next = append(next, midi.NewNoteOn(p.channel, n.Pitch, n.Velocity).At(n.StartTime))
			if first, ok := reopened[n.Pitch]; !ok || n.StartTime.Before(first) {
				reopened[n.Pitch] = n.StartTime
			}
		}
		if n.Open() || n.EndTime.Before(playhead) {
			continue
		}
		next = append(next, midi.NewNoteOff(p.channel, n.Pitch).At(n.EndTime))
		if n.StartTime.Before(playhead) {
			continued[n.Pitch] = true
		}
	}

	// Carry over the old close of any sounding note the new schedule would
	// otherwise leave open.
	for pitch := range p.openNotes {
		if continued[pitch] {
			continue
		}
		closeAt, ok := p.pendingNoteOff(pitch)
		if !ok {
			closeAt = playhead
		}
		if at, ok := reopened[pitch]; ok && !at.After(closeAt) {
			continue
		}
		debug.Log("player", "keeping note-off pitch=%d at %s", pitch, closeAt.Format("15:04:05.000"))
		next = append(next, midi.NewNoteOff(p.channel, pitch).At(closeAt))
	}

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].Time.Before(next[j].Time)
	})
	p.queue = next
}

// pendingNoteOff finds the next queued note-off for pitch. Caller holds mu.
func (p *Player) pendingNoteOff(pitch uint8) (time.Time, bool) {
	for _, msg := range p.queue {
		if msg.Pitch == pitch && msg.IsNoteOff() {
			return msg.Time, true
		}
	}
	return time.Time{}, false
}

// Stop disables updates, closes every sounding note and blocks until the
// playback goroutine exits.
func (p *Player) Stop() {
	p.mu.Lock()
	p.allowUpdates = false
	now := time.Now()
	p.queue = p.queue[:0]
	for pitch := range p.openNotes {
		p.queue = append(p.queue, midi.NewNoteOff(p.channel, pitch).At(now))
	}
	p.interrupt()
	p.mu.Unlock()

	if p.started.Load() {
		<-p.done
	}
}

// interrupt signals the loop to recalculate (queue changed)
func (p *Player) interrupt() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Player) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(p.done)

	p.mu.Lock()
	now := time.Now()
	for len(p.queue) > 0 && p.queue[0].Time.Before(now) {
		p.queue = p.queue[1:]
	}
	p.mu.Unlock()

	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			if !p.allowUpdates {
				p.mu.Unlock()
				return
			}
			p.mu.Unlock()
			<-p.wake
			continue
		}

		next := p.queue[0]
		wait := time.Until(next.Time)
		if wait > 0 {
			p.mu.Unlock()
			p.waitFor(wait)
			continue
		}

		p.queue = p.queue[1:]
		if next.IsNoteOff() {
			delete(p.openNotes, next.Pitch)
		} else if next.Kind == midi.NoteOn {
			p.openNotes[next.Pitch] = struct{}{}
		}
		p.mu.Unlock()

		if err := p.out.Send(next); err != nil {
			debug.Warn("player", "send %v: %v", next, err)
		}
	}
}

// waitFor blocks for d or until the queue changes
func (p *Player) waitFor(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-p.wake:
	case <-timer.C:
	}
}

// OpenNotes returns the pitches currently sounding
func (p *Player) OpenNotes() []uint8 {
	p.mu.Lock()
	defer p.mu.Unlock()
	pitches := make([]uint8, 0, len(p.openNotes))
	for pitch := range p.openNotes {
		pitches = append(pitches, pitch)
	}
	sort.Slice(pitches, func(i, j int) bool { return pitches[i] < pitches[j] })
	return pitches
}
