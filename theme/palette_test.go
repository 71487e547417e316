package theme

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.gpl")
	data := "GIMP Palette\nName: Test\nColumns: 2\n# comment\n0 0 0\tblack\n255 255 255\twhite\n300 0 0\tbad\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadGPL(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "Test" || len(p.Colors) != 2 {
		t.Fatalf("loaded %+v", p)
	}
}

func TestLoadGPLEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpl")
	os.WriteFile(path, []byte("GIMP Palette\n"), 0644)
	if _, err := LoadGPL(path); err == nil {
		t.Error("expected an error for a palette without colors")
	}
}

func TestLookup(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {255, 255, 255}}}

	tests := []struct {
		name string
		norm float64
		want RGB
	}{
		{"below", -1, RGB{0, 0, 0}},
		{"first", 0, RGB{0, 0, 0}},
		{"last", 1, RGB{255, 255, 255}},
		{"above", 2, RGB{255, 255, 255}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Lookup(tt.norm); got != tt.want {
				t.Errorf("Lookup(%v) = %v, want %v", tt.norm, got, tt.want)
			}
		})
	}

	mid := p.Lookup(0.5)
	for _, ch := range mid {
		if ch < 64 || ch > 192 {
			t.Errorf("Lookup(0.5) = %v, want a mid grey", mid)
		}
	}
}

func TestHex(t *testing.T) {
	if got := (RGB{0xff, 0x10, 0x00}).Hex(); got != "#ff1000" {
		t.Errorf("Hex = %q", got)
	}
}
