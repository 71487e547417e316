package sequencer

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go-midihub/debug"
	"go-midihub/midi"
)

// Metronome tick defaults
const (
	DefaultTickPitch    uint8 = 95
	DefaultTickVelocity uint8 = 64
	DefaultTickDuration       = 50 * time.Millisecond

	// sleep offset correction per tick
	offsetStep = 500 * time.Microsecond
)

// MetronomeOption customises the tick note
type MetronomeOption func(*Metronome)

func WithTickPitch(pitch uint8) MetronomeOption {
	return func(m *Metronome) { m.pitch = pitch }
}

func WithTickVelocity(velocity uint8) MetronomeOption {
	return func(m *Metronome) { m.velocity = velocity }
}

func WithTickDuration(d time.Duration) MetronomeOption {
	return func(m *Metronome) { m.duration = d }
}

func WithTickChannel(channel uint8) MetronomeOption {
	return func(m *Metronome) { m.channel = channel }
}

// Metronome sends a tick on every beat, phase-locked to its start time
type Metronome struct {
	out      midi.Output
	start    time.Time
	period   time.Duration
	pitch    uint8
	velocity uint8
	duration time.Duration
	channel  uint8

	stopped  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool
}

// NewMetronome creates a metronome whose beats fall on start + k*60/qpm.
// start may be in the past.
func NewMetronome(out midi.Output, start time.Time, qpm float64, opts ...MetronomeOption) *Metronome {
	m := &Metronome{
		out:      out,
		start:    start,
		period:   time.Duration(float64(time.Minute) / qpm),
		pitch:    DefaultTickPitch,
		velocity: DefaultTickVelocity,
		duration: DefaultTickDuration,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Period returns the time between ticks
func (m *Metronome) Period() time.Duration {
	return m.period
}

// Start launches the tick goroutine. Calling it twice has no effect.
func (m *Metronome) Start() {
	if m.started.Swap(true) {
		return
	}
	go m.run()
}

// Stop signals the metronome and blocks until its goroutine has exited.
// A tick already being sounded is allowed to finish.
func (m *Metronome) Stop() {
	m.stopped.Store(true)
	m.stopOnce.Do(func() { close(m.stopChan) })
	if m.started.Load() {
		<-m.done
	}
}

// nextTick returns the first beat instant strictly after now
func (m *Metronome) nextTick(now time.Time) time.Time {
	phase := now.Sub(m.start) % m.period
	if phase < 0 {
		phase += m.period
	}
	return now.Add(m.period - phase)
}

func (m *Metronome) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(m.done)

	var sleepOffset time.Duration
	for !m.stopped.Load() {
		next := m.nextTick(time.Now())

		// Sleep until shortly before the tick. The offset drifts toward
		// waking a little early, then we spin the rest of the way.
		if d := time.Until(next) + sleepOffset; d > 0 {
			if !m.sleep(d) {
				return
			}
		}

		late := time.Since(next)
		if late > 0 {
			sleepOffset -= offsetStep
		} else if late < -time.Millisecond {
			sleepOffset += offsetStep
		}
		if late > time.Millisecond {
			debug.LogEvery(16, "metronome", "tick late by %v", late)
		}

		for time.Now().Before(next) {
		}

		m.send(midi.NewNoteOn(m.channel, m.pitch, m.velocity))
		time.Sleep(m.duration)
		m.send(midi.NewNoteOff(m.channel, m.pitch))
	}
}

// sleep waits for d, returning false if stopped first
func (m *Metronome) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-m.stopChan:
		return false
	case <-timer.C:
		return true
	}
}

func (m *Metronome) send(msg midi.Message) {
	if err := m.out.Send(msg); err != nil {
		debug.Warn("metronome", "send %v: %v", msg, err)
	}
}
