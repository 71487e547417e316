package midi

import (
	"context"
	"errors"
	"sync"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// ErrScanTimeout is returned when the driver hangs while enumerating ports.
// On macOS the fix is: sudo killall coreaudiod midiserver
var ErrScanTimeout = errors.New("midi port scan timed out")

const scanTimeout = 3 * time.Second

// ListPorts returns the current input and output ports.
// CoreMIDI can hang, so the scan is abandoned after a few seconds.
func ListPorts() ([]drivers.In, []drivers.Out, error) {
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		inPorts := gomidi.GetInPorts()
		outPorts := gomidi.GetOutPorts()
		ch <- portsResult{inPorts: inPorts, outPorts: outPorts}
	}()

	select {
	case result := <-ch:
		return result.inPorts, result.outPorts, nil
	case <-time.After(scanTimeout):
		return nil, nil, ErrScanTimeout
	}
}

// PortNames lists port names, for display
func PortNames() (inputs, outputs []string, err error) {
	return portNames()
}

func portNames() ([]string, []string, error) {
	inPorts, outPorts, err := ListPorts()
	if err != nil {
		return nil, nil, err
	}
	var inputs, outputs []string
	for _, p := range inPorts {
		inputs = append(inputs, p.String())
	}
	for _, p := range outPorts {
		outputs = append(outputs, p.String())
	}
	return inputs, outputs, nil
}

// PortEvent is emitted when a watched port appears or disappears
type PortEvent struct {
	Type PortEventType
	Name string
	// Input is true for input ports, false for outputs
	Input bool
}

type PortEventType int

const (
	PortConnected PortEventType = iota
	PortDisconnected
)

// PortWatcher polls the driver and reports changes to the watched ports
type PortWatcher struct {
	inputs   []string
	outputs  []string
	present  map[string]bool
	mu       sync.RWMutex
	events   chan PortEvent
	pollRate time.Duration
	list     func() ([]string, []string, error)
}

// NewPortWatcher watches the given input and output port names
func NewPortWatcher(inputs, outputs []string) *PortWatcher {
	return &PortWatcher{
		inputs:   inputs,
		outputs:  outputs,
		present:  make(map[string]bool),
		events:   make(chan PortEvent, 16),
		pollRate: time.Second,
		list:     portNames,
	}
}

// Events returns a channel of port connect/disconnect events
func (pw *PortWatcher) Events() <-chan PortEvent {
	return pw.events
}

// Present reports whether a watched port was seen on the last scan
func (pw *PortWatcher) Present(name string, input bool) bool {
	pw.mu.RLock()
	defer pw.mu.RUnlock()
	return pw.present[key(name, input)]
}

// Run starts the polling loop (blocking - run in goroutine)
func (pw *PortWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(pw.pollRate)
	defer ticker.Stop()

	pw.scan()

	for {
		select {
		case <-ctx.Done():
			close(pw.events)
			return
		case <-ticker.C:
			pw.scan()
		}
	}
}

func (pw *PortWatcher) scan() {
	inNames, outNames, err := pw.list()
	if err != nil {
		// driver is hung - skip this scan
		return
	}

	seen := make(map[string]bool)
	for _, name := range pw.inputs {
		if matchName(inNames, name) >= 0 {
			seen[key(name, true)] = true
		}
	}
	for _, name := range pw.outputs {
		if matchName(outNames, name) >= 0 {
			seen[key(name, false)] = true
		}
	}

	pw.mu.Lock()
	var changes []PortEvent
	for _, name := range pw.inputs {
		changes = pw.diff(changes, name, true, seen)
	}
	for _, name := range pw.outputs {
		changes = pw.diff(changes, name, false, seen)
	}
	pw.present = seen
	pw.mu.Unlock()

	for _, ev := range changes {
		select {
		case pw.events <- ev:
		default:
		}
	}
}

func (pw *PortWatcher) diff(changes []PortEvent, name string, input bool, seen map[string]bool) []PortEvent {
	k := key(name, input)
	switch {
	case seen[k] && !pw.present[k]:
		changes = append(changes, PortEvent{Type: PortConnected, Name: name, Input: input})
	case !seen[k] && pw.present[k]:
		changes = append(changes, PortEvent{Type: PortDisconnected, Name: name, Input: input})
	}
	return changes
}

func key(name string, input bool) string {
	if input {
		return "in:" + name
	}
	return "out:" + name
}
