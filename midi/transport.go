package midi

// Input delivers inbound messages to a single callback
type Input interface {
	// Listen registers fn; it is invoked once per physical event on the
	// driver's delivery goroutine.
	Listen(fn func(Message)) error
	Close() error
}

// Output transmits messages to a device
type Output interface {
	Send(msg Message) error
	Close() error
}

// Transport opens named ports
type Transport interface {
	OpenInput(name string) (Input, error)
	OpenOutput(name string) (Output, error)
}
