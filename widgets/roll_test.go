package widgets

import (
	"strings"
	"testing"
	"time"

	"go-midihub/sequencer"
	"go-midihub/theme"
)

func TestNoteName(t *testing.T) {
	tests := map[uint8]string{
		0:   "C-1",
		60:  "C4",
		61:  "C#4",
		69:  "A4",
		127: "G9",
	}
	for pitch, want := range tests {
		if got := NoteName(pitch); got != want {
			t.Errorf("NoteName(%d) = %q, want %q", pitch, got, want)
		}
	}
}

func TestRollCells(t *testing.T) {
	from := time.Unix(100, 0)
	step := 100 * time.Millisecond
	at := func(d time.Duration) time.Time { return from.Add(d) }
	now := at(time.Second)

	notes := []sequencer.Note{
		{Pitch: 60, Velocity: 80, StartTime: at(100 * time.Millisecond), EndTime: at(350 * time.Millisecond)},
		{Pitch: 60, Velocity: 90, StartTime: at(750 * time.Millisecond)}, // still held
		{Pitch: 64, Velocity: 90, StartTime: at(0), EndTime: at(time.Second)},
	}

	cells, vel := rollCells(notes, 60, from, step, 10, now)
	want := []cell{
		cellEmpty, cellOnset, cellHeld, cellHeld, cellEmpty,
		cellEmpty, cellEmpty, cellOnset, cellHeld, cellHeld,
	}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("cell %d = %d, want %d", i, cells[i], want[i])
		}
	}
	if vel[1] != 80 || vel[7] != 90 {
		t.Errorf("velocities = %v", vel)
	}
}

func TestRollRender(t *testing.T) {
	th := theme.New(nil)
	now := time.Now()
	seq := sequencer.NewNoteSequence(120)
	seq.AddNote(60, 100, now.Add(-time.Second), now.Add(-500*time.Millisecond))
	seq.AddNote(62, 100, now.Add(-400*time.Millisecond), now.Add(-100*time.Millisecond))

	out := Roll{Theme: th, Width: 20, Window: 2 * time.Second}.Render(seq, now)
	lines := strings.Split(out, "\n")
	// 62, 61, 60, then the ruler
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], "D4") || !strings.Contains(lines[2], "C4") {
		t.Errorf("pitch labels out of order:\n%s", out)
	}
	if !strings.ContainsRune(lines[3], th.Symbols.RollBeat) {
		t.Errorf("ruler has no beats: %q", lines[3])
	}
}

func TestRollRenderEmpty(t *testing.T) {
	out := Roll{Theme: theme.New(nil), Width: 10, Window: time.Second}.Render(nil, time.Now())
	if !strings.Contains(out, "no notes") {
		t.Errorf("Render(nil) = %q", out)
	}
}

func TestRenderKeyHelp(t *testing.T) {
	out := RenderKeyHelp([]KeySection{{Title: "Hub", Keys: []KeyBinding{{"t", "toggle passthrough"}}}})
	if !strings.Contains(out, "Hub") || !strings.Contains(out, "toggle passthrough") {
		t.Errorf("RenderKeyHelp = %q", out)
	}
}
