package sequencer

import (
	"sync"
	"testing"
	"time"

	"go-midihub/midi"
)

// sent is a message as it left an output, stamped with the send time
type sent struct {
	Msg midi.Message
	At  time.Time
}

type fakeOutput struct {
	mu     sync.Mutex
	sent   []sent
	closed bool
}

func (o *fakeOutput) Send(msg midi.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, sent{Msg: msg.Copy(), At: time.Now()})
	return nil
}

func (o *fakeOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func (o *fakeOutput) Sent() []sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]sent(nil), o.sent...)
}

// Shapes returns the sent messages without times
func (o *fakeOutput) Shapes() []midi.Signature {
	var sigs []midi.Signature
	for _, s := range o.Sent() {
		sigs = append(sigs, s.Msg.Signature())
	}
	return sigs
}

type fakeInput struct {
	mu     sync.Mutex
	fn     func(midi.Message)
	closed bool
}

func (i *fakeInput) Listen(fn func(midi.Message)) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fn != nil {
		return midi.ErrListening
	}
	i.fn = fn
	return nil
}

func (i *fakeInput) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
	return nil
}

// Deliver plays the role of the driver's delivery goroutine
func (i *fakeInput) Deliver(msgs ...midi.Message) {
	i.mu.Lock()
	fn := i.fn
	i.mu.Unlock()
	for _, msg := range msgs {
		fn(msg)
	}
}

type fakeTransport struct {
	inputs  map[string]*fakeInput
	outputs map[string]*fakeOutput
}

func (t *fakeTransport) OpenInput(name string) (midi.Input, error) {
	if in, ok := t.inputs[name]; ok {
		return in, nil
	}
	return nil, midi.ErrPortNotFound
}

func (t *fakeTransport) OpenOutput(name string) (midi.Output, error) {
	if out, ok := t.outputs[name]; ok {
		return out, nil
	}
	return nil, midi.ErrPortNotFound
}

// eventually polls cond until it holds or the timeout expires
func eventually(t *testing.T, timeout time.Duration, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf(format, args...)
		}
		time.Sleep(time.Millisecond)
	}
}

// waitDone fails the test if ch is not closed within timeout
func waitDone(t *testing.T, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func noteOn(pitch, velocity uint8, at time.Time) midi.Message {
	return midi.NewNoteOn(0, pitch, velocity).At(at)
}

func noteOff(pitch uint8, at time.Time) midi.Message {
	return midi.NewNoteOff(0, pitch).At(at)
}
