// Package render produces rasters for the matrix: text laid out in a small
// bitmap font, and arbitrary images scaled down to the display.
package render

import (
	"unicode"

	"github.com/thiefmaster/matrixctl/bitmap"
)

const (
	// Size is the edge length of the square display.
	Size = 32

	advance      = glyphWidth + 1
	linePitch    = glyphHeight + 1
	glyphsPerRow = Size / advance
)

// Raster is a row-major pixel buffer.
type Raster struct {
	Width, Height int
	Pix           []bitmap.Color
}

func NewRaster(width, height int) *Raster {
	return &Raster{Width: width, Height: height, Pix: make([]bitmap.Color, width*height)}
}

func (r *Raster) Set(x, y int, c bitmap.Color) {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return
	}
	r.Pix[y*r.Width+x] = c
}

func (r *Raster) At(x, y int) bitmap.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return bitmap.Color{}
	}
	return r.Pix[y*r.Width+x]
}

// Fill sets every pixel to c.
func (r *Raster) Fill(c bitmap.Color) {
	for i := range r.Pix {
		r.Pix[i] = c
	}
}

// DrawText lays text out on a 32x32 raster, eight glyphs per row, and
// returns the raster. Whitespace and runes the font does not know leave
// their cell empty; text past the last row is clipped.
func DrawText(text string, fg, bg bitmap.Color) *Raster {
	r := NewRaster(Size, Size)
	r.Fill(bg)
	for i, ch := range []rune(text) {
		g, ok := font[unicode.ToLower(ch)]
		if !ok {
			continue
		}
		x := (i % glyphsPerRow) * advance
		y := (i / glyphsPerRow) * linePitch
		drawGlyph(r, g, x, y, fg)
	}
	return r
}

func drawGlyph(r *Raster, g glyph, x, y int, c bitmap.Color) {
	for dy, row := range g {
		for dx := 0; dx < len(row); dx++ {
			if row[dx] == '#' {
				r.Set(x+dx, y+dy, c)
			}
		}
	}
}

// Typewriter reveals Text one rune at a time, then takes it back down to an
// empty frame again.
type Typewriter struct {
	text    []rune
	n       int
	forward bool
}

func NewTypewriter(text string) *Typewriter {
	return &Typewriter{text: []rune(text), forward: true}
}

// Next returns the next visible prefix. The sequence for "abc" is
// "a", "ab", "abc", "ab", "a", "", "a", ...
func (t *Typewriter) Next() string {
	if len(t.text) == 0 {
		return ""
	}
	if t.n >= len(t.text) {
		t.forward = false
	}
	if t.n == 0 {
		t.forward = true
	}
	if t.forward {
		t.n++
	} else {
		t.n--
	}
	return string(t.text[:t.n])
}
