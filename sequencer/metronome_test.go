package sequencer

import (
	"testing"
	"time"

	"go-midihub/midi"
)

func TestNextTickPhaseLocked(t *testing.T) {
	start := time.Unix(1000, 0)
	m := NewMetronome(&fakeOutput{}, start, 120) // 500ms period

	tests := []struct {
		name string
		now  time.Duration
		want time.Duration
	}{
		{"on a beat", 0, 500 * time.Millisecond},
		{"mid beat", 1200 * time.Millisecond, 1500 * time.Millisecond},
		{"just before", 1999 * time.Millisecond, 2000 * time.Millisecond},
		{"start in future", -700 * time.Millisecond, -500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.nextTick(start.Add(tt.now))
			if !got.Equal(start.Add(tt.want)) {
				t.Errorf("nextTick(%v) = %v, want %v", tt.now, got.Sub(start), tt.want)
			}
		})
	}
}

func TestMetronomeTicksOnBeat(t *testing.T) {
	out := &fakeOutput{}
	start := time.Now().Add(-30 * time.Millisecond) // phase is not thread start
	m := NewMetronome(out, start, 600, WithTickDuration(10*time.Millisecond), WithTickPitch(77), WithTickChannel(9))
	if m.Period() != 100*time.Millisecond {
		t.Fatalf("Period = %v", m.Period())
	}

	m.Start()
	time.Sleep(550 * time.Millisecond)
	m.Stop()

	var ticks []time.Time
	for _, s := range out.Sent() {
		if s.Msg.Kind == midi.NoteOn {
			if s.Msg.Pitch != 77 || s.Msg.Channel != 9 || s.Msg.Velocity != DefaultTickVelocity {
				t.Errorf("unexpected tick %v", s.Msg)
			}
			ticks = append(ticks, s.At)
		}
	}
	if len(ticks) < 4 {
		t.Fatalf("got %d ticks in 550ms at 600qpm", len(ticks))
	}
	for i, at := range ticks {
		offset := at.Sub(start) % m.Period()
		if offset > m.Period()/2 {
			offset -= m.Period()
		}
		if offset < 0 || offset > 5*time.Millisecond {
			t.Errorf("tick %d is %v off the beat", i, offset)
		}
	}
}

func TestMetronomeStopJoins(t *testing.T) {
	out := &fakeOutput{}
	m := NewMetronome(out, time.Now(), 30) // 2s period
	m.Start()

	begin := time.Now()
	m.Stop()
	if waited := time.Since(begin); waited > 500*time.Millisecond {
		t.Errorf("Stop took %v, should interrupt the wait for the next beat", waited)
	}

	n := len(out.Sent())
	time.Sleep(20 * time.Millisecond)
	if len(out.Sent()) != n {
		t.Error("metronome sent after Stop returned")
	}

	// stopping twice is harmless
	m.Stop()
}

func TestMetronomeTickPairs(t *testing.T) {
	out := &fakeOutput{}
	m := NewMetronome(out, time.Now(), 1200, WithTickDuration(5*time.Millisecond))
	m.Start()
	time.Sleep(120 * time.Millisecond)
	m.Stop()

	sent := out.Sent()
	if len(sent)%2 != 0 {
		t.Fatalf("odd number of messages: %d", len(sent))
	}
	for i := 0; i < len(sent); i += 2 {
		if sent[i].Msg.Kind != midi.NoteOn || !sent[i+1].Msg.IsNoteOff() {
			t.Errorf("messages %d,%d = %v, %v; want on/off pair", i, i+1, sent[i].Msg, sent[i+1].Msg)
		}
		if sent[i].Msg.Pitch != DefaultTickPitch {
			t.Errorf("tick pitch = %d", sent[i].Msg.Pitch)
		}
	}
}
