package tui

import (
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"go-midihub/config"
	"go-midihub/midi"
	"go-midihub/sequencer"
	"go-midihub/theme"
)

type nullOutput struct {
	mu   sync.Mutex
	sent []midi.Message
}

func (o *nullOutput) Send(msg midi.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, msg)
	return nil
}

func (o *nullOutput) Close() error { return nil }

type scriptedInput struct {
	fn func(midi.Message)
}

func (i *scriptedInput) Listen(fn func(midi.Message)) error {
	i.fn = fn
	return nil
}

func (i *scriptedInput) Close() error { return nil }

func newTestModel(t *testing.T) (Model, *scriptedInput) {
	t.Helper()
	in := &scriptedInput{}
	hub, err := sequencer.NewHub(in, &nullOutput{}, sequencer.Polyphonic, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { hub.Close() })
	return NewModel(hub, nil, config.DefaultConfig(), theme.New(nil)), in
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		if k == " " {
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		} else {
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestTogglePassthrough(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "t")
	if !m.Hub.Passthrough() {
		t.Error("passthrough not enabled")
	}
	m = press(t, m, "t")
	if m.Hub.Passthrough() {
		t.Error("passthrough not disabled")
	}
}

func TestToggleMetronome(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(t, m, "m")
	if !m.Hub.MetronomeRunning() {
		t.Fatal("metronome not started")
	}
	m = press(t, m, "+", "m")
	if m.Hub.MetronomeRunning() {
		t.Error("metronome not stopped")
	}
	if m.qpm != 125 {
		t.Errorf("qpm = %v", m.qpm)
	}
}

func TestRecordAndReplay(t *testing.T) {
	m, in := newTestModel(t)

	m = press(t, m, " ")
	if m.status != "nothing recorded" {
		t.Errorf("status = %q", m.status)
	}

	m = press(t, m, "r")
	if m.captor == nil {
		t.Fatal("not recording")
	}
	time.Sleep(2 * time.Millisecond)
	in.fn(midi.NewNoteOn(0, 60, 100))
	in.fn(midi.NewNoteOff(0, 60))
	time.Sleep(5 * time.Millisecond)

	m = press(t, m, "r")
	if m.captor != nil || m.last == nil {
		t.Fatal("recording not finished")
	}
	if len(m.last.Notes) != 1 {
		t.Fatalf("captured %+v", m.last.Notes)
	}

	m = press(t, m, " ")
	if m.player == nil {
		t.Fatalf("not playing: %s", m.status)
	}
	if start := m.live.Notes[0].StartTime; start.Before(time.Now()) {
		t.Errorf("replay starts in the past: %v", time.Until(start))
	}
	m = press(t, m, "s")
	if m.player != nil {
		t.Error("player not stopped")
	}
}

func TestPortEventStatus(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(PortEventMsg{Type: midi.PortDisconnected, Name: "Keystation", Input: true})
	m = next.(Model)
	if !strings.Contains(m.status, "Keystation") || !strings.Contains(m.status, "disconnected") {
		t.Errorf("status = %q", m.status)
	}
}

func TestView(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.View()
	for _, want := range []string{"go-midihub", "polyphonic", "thru", "quit"} {
		if !strings.Contains(out, want) {
			t.Errorf("view is missing %q", want)
		}
	}
}
