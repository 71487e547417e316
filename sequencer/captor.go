package sequencer

import (
	"sync"
	"sync/atomic"
	"time"

	"go-midihub/debug"
	"go-midihub/midi"
)

// CaptureOption sets a termination condition for a Captor
type CaptureOption func(*Captor)

// WithStopTime ends the capture at t
func WithStopTime(t time.Time) CaptureOption {
	return func(c *Captor) { c.stopTime = t }
}

// WithStopSignal ends the capture when a message shaped like msg arrives.
// The time of msg is ignored.
func WithStopSignal(msg midi.Message) CaptureOption {
	return func(c *Captor) {
		sig := msg.Signature()
		c.stopSignal = &sig
	}
}

// Captor records an inbound message stream into a NoteSequence until a stop
// time, a stop signal, or an explicit Stop. When both a time and a signal
// are given, whichever comes first ends the capture.
type Captor struct {
	texture    Texture
	startTime  time.Time
	stopSignal *midi.Signature
	tracker    noteTracker

	// mu guards sequence, tracker state and stopTime
	mu       sync.Mutex
	sequence *NoteSequence
	stopTime time.Time

	// queueMu guards pending; the wake channel carries no content and only
	// makes the loop look at the queue and the deadline again.
	queueMu sync.Mutex
	pending []midi.Message
	wake    chan struct{}

	started atomic.Bool
	done    chan struct{}
}

// NewCaptor creates a captor for the given texture. Messages dated at or
// before start are ignored.
func NewCaptor(texture Texture, qpm float64, start time.Time, opts ...CaptureOption) *Captor {
	c := &Captor{
		texture:   texture,
		startTime: start,
		tracker:   newNoteTracker(texture),
		sequence:  NewNoteSequence(qpm),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Captor) Texture() Texture {
	return c.texture
}

// Start launches the capture goroutine
func (c *Captor) Start() {
	if c.started.Swap(true) {
		return
	}
	go c.run()
}

// Done is closed once the capture has finished and its sequence is final
func (c *Captor) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the capture finishes
func (c *Captor) Wait() {
	<-c.done
}

// Running reports whether the capture goroutine is live
func (c *Captor) Running() bool {
	if !c.started.Load() {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// finished reports whether the sequence is final. Unlike Running, a captor
// that was never started is not finished.
func (c *Captor) finished() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Receive queues a stamped message. It never blocks on the capture loop.
func (c *Captor) Receive(msg midi.Message) error {
	if msg.Time.IsZero() {
		return ErrUntimedMessage
	}
	c.queueMu.Lock()
	c.pending = append(c.pending, msg)
	c.queueMu.Unlock()
	c.interrupt()
	return nil
}

func (c *Captor) interrupt() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Captor) pop() (midi.Message, bool) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if len(c.pending) == 0 {
		return midi.Message{}, false
	}
	msg := c.pending[0]
	c.pending[0] = midi.Message{}
	c.pending = c.pending[1:]
	return msg, true
}

// Stop ends the capture at stopTime (zero means now) and blocks until the
// capture goroutine exits. stopTime may be in the past, in which case the
// result is truncated there.
func (c *Captor) Stop(stopTime time.Time) error {
	if !c.Running() {
		return ErrCaptorNotRunning
	}
	if stopTime.IsZero() {
		stopTime = time.Now()
	}
	c.mu.Lock()
	c.stopTime = stopTime
	c.mu.Unlock()

	c.interrupt()
	<-c.done
	return nil
}

// CapturedSequence returns a copy of what has been captured. While the
// capture runs, end is required: open notes are closed at end and later
// material is dropped or clipped. Once finished, end must be zero.
func (c *Captor) CapturedSequence(end time.Time) (*NoteSequence, error) {
	finished := c.finished()
	c.mu.Lock()
	seq := c.sequence.Clone()
	c.mu.Unlock()

	if finished {
		if !end.IsZero() {
			return nil, ErrEndTimeNotAllowed
		}
		return seq, nil
	}
	if end.IsZero() {
		return nil, ErrEndTimeRequired
	}
	seq.truncate(end)
	return seq, nil
}

func (c *Captor) run() {
	defer close(c.done)

	var end time.Time
	for end.IsZero() {
		c.mu.Lock()
		stopTime := c.stopTime
		c.mu.Unlock()

		if !stopTime.IsZero() && !time.Now().Before(stopTime) {
			end = c.drain(stopTime)
			break
		}

		msg, ok := c.pop()
		if !ok {
			c.waitFor(stopTime)
			continue
		}
		end = c.handle(msg)
	}

	c.mu.Lock()
	c.sequence.truncate(end)
	n := len(c.sequence.Notes)
	c.mu.Unlock()
	debug.Log("captor", "%s capture finished with %d notes", c.texture, n)
}

// handle captures one message. It returns the message time if the message
// is the stop signal, zero otherwise.
func (c *Captor) handle(msg midi.Message) time.Time {
	if !msg.Time.After(c.startTime) {
		// predates the capture window
		return time.Time{}
	}
	if c.stopSignal != nil && msg.Signature() == *c.stopSignal {
		return msg.Time
	}
	c.mu.Lock()
	c.tracker.capture(c.sequence, msg)
	c.mu.Unlock()
	return time.Time{}
}

// drain captures messages still queued that arrived before stopTime
func (c *Captor) drain(stopTime time.Time) time.Time {
	for {
		msg, ok := c.pop()
		if !ok || msg.Time.After(stopTime) {
			return stopTime
		}
		if end := c.handle(msg); !end.IsZero() {
			return end
		}
	}
}

// waitFor blocks until a message or wake token arrives, or until stopTime
func (c *Captor) waitFor(stopTime time.Time) {
	if stopTime.IsZero() {
		<-c.wake
		return
	}
	timer := time.NewTimer(time.Until(stopTime))
	defer timer.Stop()
	select {
	case <-c.wake:
	case <-timer.C:
	}
}
