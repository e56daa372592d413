package raster

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	ClassicTheme   ColorTheme = "classic"
	GrayscaleTheme ColorTheme = "grayscale"
	ThermalTheme   ColorTheme = "thermal"
	MarineTheme    ColorTheme = "marine"

	defaultPaletteSize = 256
)

// ColorTheme selects the gradient used to colour the path from its first
// point to its last.
type ColorTheme string

var themes = map[ColorTheme]func(float64) color.Color{
	// Blue -> Red
	ClassicTheme: func(v float64) color.Color {
		return colorful.Hsv(240-(v*240), 0.9+(v*0.1), 0.85)
	},

	// Gray -> Black
	GrayscaleTheme: func(v float64) color.Color {
		c := uint8((1 - v) * 160)
		return color.RGBA{R: c, G: c, B: c, A: 0xff}
	},

	// Red -> Yellow
	ThermalTheme: func(v float64) color.Color {
		if v < 0.5 {
			return color.RGBA{R: uint8(128 + v*254), A: 0xff}
		}
		return color.RGBA{R: 255, G: uint8((v - 0.5) * 2 * 200), A: 0xff}
	},

	// Deep Blue -> Cyan
	MarineTheme: func(v float64) color.Color {
		return colorful.Hsv(240-(v*60), 1.0, 0.4+(math.Pow(v, 0.6)*0.5))
	},
}

// ParseColorTheme validates a theme name. An empty name selects ClassicTheme.
func ParseColorTheme(name string) (ColorTheme, error) {
	if name == "" {
		return ClassicTheme, nil
	}
	if _, ok := themes[ColorTheme(name)]; !ok {
		return "", fmt.Errorf("unknown color theme: %s", name)
	}
	return ColorTheme(name), nil
}

// palette is a pre-computed gradient indexed by a fraction in [0,1].
type palette struct {
	colors []color.Color
}

func newPalette(size int, theme ColorTheme) *palette {
	if size < 2 {
		size = defaultPaletteSize
	}

	fn, ok := themes[theme]
	if !ok {
		fn = themes[ClassicTheme]
	}

	p := &palette{colors: make([]color.Color, size)}
	for i := range p.colors {
		p.colors[i] = fn(float64(i) / float64(size-1))
	}

	return p
}

// At returns the colour for a fraction, clamped to [0,1].
func (p *palette) At(fraction float64) color.Color {
	fraction = math.Max(0, math.Min(fraction, 1))
	return p.colors[int(fraction*float64(len(p.colors)-1))]
}
