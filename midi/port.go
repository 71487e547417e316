package midi

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

var (
	ErrPortNotFound = errors.New("midi port not found")
	ErrListening    = errors.New("input already has a listener")
)

// PortTransport opens ports through the registered gomidi driver.
// Binaries must import a driver, e.g. drivers/rtmididrv.
type PortTransport struct{}

func (PortTransport) OpenInput(name string) (Input, error) {
	ports, _, err := ListPorts()
	if err != nil {
		return nil, err
	}
	in, ok := matchPort(ports, name)
	if !ok {
		return nil, fmt.Errorf("%w: input %q", ErrPortNotFound, name)
	}
	return &PortInput{port: in}, nil
}

func (PortTransport) OpenOutput(name string) (Output, error) {
	_, ports, err := ListPorts()
	if err != nil {
		return nil, err
	}
	out, ok := matchPort(ports, name)
	if !ok {
		return nil, fmt.Errorf("%w: output %q", ErrPortNotFound, name)
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return &PortOutput{port: out, send: send}, nil
}

// matchPort prefers an exact name, then a case-insensitive substring
func matchPort[P fmt.Stringer](ports []P, name string) (P, bool) {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	if i := matchName(names, name); i >= 0 {
		return ports[i], true
	}
	var zero P
	return zero, false
}

func matchName(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	lower := strings.ToLower(name)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), lower) {
			return i
		}
	}
	return -1
}

// PortInput listens on a gomidi input port
type PortInput struct {
	port drivers.In

	mu       sync.Mutex
	stopFunc func()
}

func (pi *PortInput) Listen(fn func(Message)) error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.stopFunc != nil {
		return ErrListening
	}
	stop, err := gomidi.ListenTo(pi.port, func(msg gomidi.Message, timestampms int32) {
		fn(FromGomidi(msg))
	})
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	pi.stopFunc = stop
	return nil
}

func (pi *PortInput) String() string {
	return pi.port.String()
}

func (pi *PortInput) Close() error {
	pi.mu.Lock()
	defer pi.mu.Unlock()

	if pi.stopFunc != nil {
		pi.stopFunc()
		pi.stopFunc = nil
	}
	return pi.port.Close()
}

// PortOutput sends to a gomidi output port
type PortOutput struct {
	port drivers.Out
	mu   sync.Mutex
	send func(gomidi.Message) error
}

func (po *PortOutput) Send(msg Message) error {
	po.mu.Lock()
	defer po.mu.Unlock()
	return po.send(msg.Gomidi())
}

func (po *PortOutput) String() string {
	return po.port.String()
}

func (po *PortOutput) Close() error {
	return po.port.Close()
}
