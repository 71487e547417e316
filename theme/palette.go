package theme

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

type RGB [3]uint8

func (c RGB) color() colorful.Color {
	return colorful.Color{R: float64(c[0]) / 255, G: float64(c[1]) / 255, B: float64(c[2]) / 255}
}

func (c RGB) Hex() string {
	return c.color().Hex()
}

type Palette struct {
	Name   string
	Colors []RGB
}

// Default is the built-in palette, dark to bright
func Default() *Palette {
	return &Palette{
		Name: "midihub",
		Colors: []RGB{
			{0x1a, 0x10, 0x2b},
			{0x2e, 0x1f, 0x4a},
			{0x5b, 0x3a, 0x7a},
			{0xb0, 0x8c, 0xd9},
			{0xe0, 0x4f, 0x9c},
			{0xff, 0x7a, 0x7a},
			{0xff, 0xa8, 0x4c},
			{0xff, 0xe1, 0x5c},
		},
	}
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p := &Palette{}
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if name, ok := strings.CutPrefix(line, "Name:"); ok {
			p.Name = strings.TrimSpace(name)
			continue
		}
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var c RGB
		ok := true
		for i := range c {
			v, err := strconv.Atoi(fields[i])
			if err != nil || v < 0 || v > 255 {
				ok = false
				break
			}
			c[i] = uint8(v)
		}
		if ok {
			p.Colors = append(p.Colors, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors found in palette %s", path)
	}

	return p, nil
}

// Lookup returns the color at normalized position 0-1, blended in Lab
// space between neighbouring entries
func (p *Palette) Lookup(norm float64) RGB {
	if norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	c := p.Colors[i].color().BlendLab(p.Colors[i+1].color(), pos-float64(i)).Clamped()
	r, g, b := c.RGB255()
	return RGB{r, g, b}
}
