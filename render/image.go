package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/gift"
	"github.com/ericpauley/go-quantize/quantize"

	"github.com/thiefmaster/matrixctl/bitmap"
)

// Decode reads a png, gif or jpeg image.
func Decode(r io.Reader) (image.Image, error) {
	m, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("could not decode image: %w", err)
	}
	return m, nil
}

// FromImage scales m to a size x size raster. When colors is positive the
// result is first reduced to at most that many colors with a median cut, so
// the device palette is chosen from the whole image rather than from
// whichever colors happen to come first in scan order.
func FromImage(m image.Image, size, colors int) *Raster {
	g := gift.New(gift.Resize(size, size, gift.BoxResampling))
	scaled := image.NewRGBA(g.Bounds(m.Bounds()))
	g.Draw(scaled, m)

	var src image.Image = scaled
	if colors > 0 {
		q := quantize.MedianCutQuantizer{}
		b := scaled.Bounds()
		pm := image.NewPaletted(b, q.Quantize(make(color.Palette, 0, colors), scaled))
		draw.Draw(pm, b, scaled, b.Min, draw.Src)
		src = pm
	}

	b := src.Bounds()
	r := NewRaster(b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r.Set(x-b.Min.X, y-b.Min.Y, bitmap.FromColor(src.At(x, y)))
		}
	}
	return r
}
