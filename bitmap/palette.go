package bitmap

// MaxDiff is the largest possible Diff between two colors.
const MaxDiff = 3 * 255

// Palette is an ordered set of unique colors. A color's position is its
// index in the packed pixel stream.
type Palette []Color

// Index returns the position of c, or -1.
func (p Palette) Index(c Color) int {
	for i, v := range p {
		if v == c {
			return i
		}
	}
	return -1
}

// Nearest returns the entry with the smallest Diff to c and that difference.
// Ties go to the lowest index. An empty palette, or one whose every entry is
// MaxDiff away, yields index 0 with MaxDiff.
func (p Palette) Nearest(c Color) (int, uint32) {
	index, diff := 0, uint32(MaxDiff)
	for i, v := range p {
		if d := v.Diff(c); d < diff {
			index, diff = i, d
		}
	}
	return index, diff
}

// Bytes returns the raw RGB triples in palette order.
func (p Palette) Bytes() []byte {
	b := make([]byte, 0, 3*len(p))
	for _, c := range p {
		b = append(b, c.R, c.G, c.B)
	}
	return b
}

// BuildPalette maps every pixel, in order, to a palette index while growing
// the palette.
//
// A pixel reuses its nearest entry, even an imperfect one, when the palette
// already holds maxSize entries or when the nearest entry is closer than
// threshold. Otherwise an exact entry is reused or the pixel's color is
// appended. A threshold of 0 therefore only merges colors once the palette is
// full. maxSize is clamped to 1..256 so every index fits in a byte.
func BuildPalette(pixels []Color, maxSize int, threshold uint32) (Palette, []uint8) {
	if maxSize < 1 {
		maxSize = 1
	} else if maxSize > 256 {
		maxSize = 256
	}
	palette := Palette{}
	indices := make([]uint8, 0, len(pixels))
	for _, c := range pixels {
		best, diff := palette.Nearest(c)
		if len(palette) > maxSize-1 || diff < threshold {
			indices = append(indices, uint8(best))
			continue
		}
		if i := palette.Index(c); i >= 0 {
			indices = append(indices, uint8(i))
			continue
		}
		indices = append(indices, uint8(len(palette)))
		palette = append(palette, c)
	}
	return palette, indices
}
