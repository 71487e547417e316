package widgets

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"go-midihub/sequencer"
	"go-midihub/theme"
)

type cell uint8

const (
	cellEmpty cell = iota
	cellOnset
	cellHeld
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the scientific pitch name, middle C being C4
func NoteName(pitch uint8) string {
	return fmt.Sprintf("%s%d", noteNames[pitch%12], int(pitch)/12-1)
}

// Roll draws a window of a NoteSequence as a piano roll, one row per pitch
// in use, highest on top.
type Roll struct {
	Theme  *theme.Theme
	Width  int           // cells
	Window time.Duration // time covered by Width cells
}

// Render draws seq over the window ending at now. Open notes extend to now.
func (r Roll) Render(seq *sequencer.NoteSequence, now time.Time) string {
	if seq == nil || len(seq.Notes) == 0 || r.Width <= 0 {
		return lipgloss.NewStyle().Foreground(r.Theme.Muted()).Render("(no notes)")
	}
	from := now.Add(-r.Window)
	step := r.Window / time.Duration(r.Width)

	lo, hi := uint8(127), uint8(0)
	for _, n := range seq.Notes {
		lo, hi = min(lo, n.Pitch), max(hi, n.Pitch)
	}

	label := lipgloss.NewStyle().Foreground(r.Theme.Muted())
	var lines []string
	for p := int(hi); p >= int(lo); p-- {
		pitch := uint8(p)
		cells, vel := rollCells(seq.Notes, pitch, from, step, r.Width, now)

		var line strings.Builder
		line.WriteString(label.Render(fmt.Sprintf("%-4s", NoteName(pitch))))
		for i, c := range cells {
			line.WriteString(r.renderCell(c, vel[i]))
		}
		lines = append(lines, line.String())
	}
	lines = append(lines, label.Render("    "+ruler(seq.QPM(), from, step, r.Width, r.Theme.Symbols.RollBeat)))
	return strings.Join(lines, "\n")
}

func (r Roll) renderCell(c cell, velocity uint8) string {
	sym := r.Theme.Symbols
	switch c {
	case cellOnset:
		return lipgloss.NewStyle().Foreground(r.Theme.Velocity(velocity)).Render(string(sym.RollOnset))
	case cellHeld:
		return lipgloss.NewStyle().Foreground(r.Theme.Velocity(velocity)).Render(string(sym.RollHeld))
	default:
		return lipgloss.NewStyle().Foreground(r.Theme.Surface()).Render(string(sym.RollEmpty))
	}
}

// rollCells classifies width cells of length step starting at from for a
// single pitch. An onset wins over a held note in the same cell.
func rollCells(notes []sequencer.Note, pitch uint8, from time.Time, step time.Duration, width int, now time.Time) ([]cell, []uint8) {
	cells := make([]cell, width)
	vel := make([]uint8, width)
	for _, n := range notes {
		if n.Pitch != pitch {
			continue
		}
		end := n.EndTime
		if n.Open() {
			end = now
		}
		for i := range cells {
			cs := from.Add(time.Duration(i) * step)
			ce := cs.Add(step)
			if !n.StartTime.Before(ce) || !end.After(cs) {
				continue
			}
			switch {
			case !n.StartTime.Before(cs):
				cells[i], vel[i] = cellOnset, n.Velocity
			case cells[i] == cellEmpty:
				cells[i], vel[i] = cellHeld, n.Velocity
			}
		}
	}
	return cells, vel
}

// ruler marks the cells containing a beat, counting beats from the epoch
func ruler(qpm float64, from time.Time, step time.Duration, width int, beat rune) string {
	if qpm <= 0 {
		return strings.Repeat(" ", width)
	}
	period := time.Duration(float64(time.Minute) / qpm)
	out := []rune(strings.Repeat(" ", width))
	next := from.Truncate(period)
	if next.Before(from) {
		next = next.Add(period)
	}
	for ; ; next = next.Add(period) {
		i := int(next.Sub(from) / step)
		if i >= width {
			break
		}
		out[i] = beat
	}
	return string(out)
}
