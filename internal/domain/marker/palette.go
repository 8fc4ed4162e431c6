package marker

import (
	"fmt"
	"math"
	"sync"

	"lukechampine.com/frand"
)

// Palette hands out marker colours as "#rrggbb".
type Palette interface {
	Next() string
}

// PaletteFunc adapts a function to Palette.
type PaletteFunc func() string

// Next implements Palette.
func (f PaletteFunc) Next() string { return f() }

// RandomPalette returns saturated colours with a random hue, bright enough
// to read as a glowing beam on a dark map.
func RandomPalette() Palette {
	return PaletteFunc(func() string {
		return HSL(frand.Float64()*360, 0.9, 0.6)
	})
}

// CyclePalette repeats colours in order.
func CyclePalette(colors ...string) Palette {
	var (
		mu sync.Mutex
		i  int
	)
	return PaletteFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(colors) == 0 {
			return "#ffffff"
		}
		c := colors[i%len(colors)]
		i++
		return c
	})
}

// HSL converts hue (degrees), saturation and lightness (0..1) to "#rrggbb".
func HSL(h, s, l float64) string {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	to8 := func(v float64) int { return int(math.Round((v + m) * 255)) }
	return fmt.Sprintf("#%02x%02x%02x", to8(r), to8(g), to8(b))
}
