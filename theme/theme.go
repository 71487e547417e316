package theme

import (
	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Key help
	Solid rune // ■ on
	Empty rune // □ off

	// Note roll
	RollEmpty    rune // · nothing sounding
	RollOnset    rune // ● note starts in this cell
	RollHeld     rune // ━ note continues
	RollPlayhead rune // ▶ now
	RollBeat     rune // ┆ beat line
}

func New(palette *Palette) *Theme {
	if palette == nil {
		palette = Default()
	}
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			Solid: '■',
			Empty: '□',

			RollEmpty:    '·',
			RollOnset:    '●',
			RollHeld:     '━',
			RollPlayhead: '▶',
			RollBeat:     '┆',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.25
	RoleFG      = 0.45
	RoleAccent  = 0.55
	RoleActive  = 0.7
	RoleWarning = 0.85
	RoleSuccess = 1.0
)

func (t *Theme) BG() lipgloss.Color      { return t.Color(RoleBG) }
func (t *Theme) Surface() lipgloss.Color { return t.Color(RoleSurface) }
func (t *Theme) FG() lipgloss.Color      { return t.Color(RoleFG) }
func (t *Theme) Accent() lipgloss.Color  { return t.Color(RoleAccent) }
func (t *Theme) Muted() lipgloss.Color   { return t.Color(RoleMuted) }
func (t *Theme) Active() lipgloss.Color  { return t.Color(RoleActive) }
func (t *Theme) Warning() lipgloss.Color { return t.Color(RoleWarning) }
func (t *Theme) Success() lipgloss.Color { return t.Color(RoleSuccess) }

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return lipgloss.Color(t.Palette.Lookup(norm).Hex())
}

// Velocity maps a MIDI velocity onto the bright half of the palette
func (t *Theme) Velocity(v uint8) lipgloss.Color {
	return t.Color(0.5 + float64(v)/254)
}
