package sequencer

import (
	"errors"
	"fmt"
)

// ErrMidiHub is wrapped by every contract violation in this package
var ErrMidiHub = errors.New("midi hub")

var (
	ErrMultipleTempos    = fmt.Errorf("%w: cannot play a sequence without exactly one tempo", ErrMidiHub)
	ErrUpdatesDisabled   = fmt.Errorf("%w: player was started with updates disabled", ErrMidiHub)
	ErrUntimedMessage    = fmt.Errorf("%w: captor received a message without a time", ErrMidiHub)
	ErrCaptorNotRunning  = fmt.Errorf("%w: captor is not running", ErrMidiHub)
	ErrEndTimeRequired   = fmt.Errorf("%w: end time is required while capture is running", ErrMidiHub)
	ErrEndTimeNotAllowed = fmt.Errorf("%w: end time must not be given once capture is complete", ErrMidiHub)
	ErrNoStopCondition   = fmt.Errorf("%w: a stop time or stop signal is required", ErrMidiHub)
)
