package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-midihub/theme"
)

// RenderIndicator renders a lit or unlit square followed by a label
func RenderIndicator(th *theme.Theme, on bool, label string) string {
	sym, color := th.Symbols.Empty, th.Muted()
	if on {
		sym, color = th.Symbols.Solid, th.Success()
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(sym)) + " " + label
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-8s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}
