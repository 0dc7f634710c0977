package bitmap

import (
	"encoding/binary"
	"fmt"
)

const (
	sentinel = 0xAA

	// DefaultMaxColors and DefaultThreshold are the lossy palette settings
	// the device firmware was tuned against.
	DefaultMaxColors = 9
	DefaultThreshold = 128

	// MaxPaletteColors is the largest cap for which every palette size up to
	// it gets enough bits per index under BitWidth.
	MaxPaletteColors = 16

	defaultSize = 32
)

var (
	DefaultTag = []byte{0x00, 0x0a, 0x0a, 0x04}
	Mode32x32  = [3]byte{0x00, 0x00, 0x03}
)

// Encoder turns a raster into an image payload. The zero value is not
// usable; start from NewEncoder or NewExactEncoder.
type Encoder struct {
	Width, Height int

	// MaxColors caps the palette. Threshold is the Diff below which a pixel
	// is folded into its nearest existing color.
	MaxColors int
	Threshold uint32

	Tag   []byte
	Mode  [3]byte
	Order BitOrder
}

// NewEncoder returns an encoder for a 32x32 raster with the lossy palette
// policy.
func NewEncoder() *Encoder {
	return &Encoder{
		Width:     defaultSize,
		Height:    defaultSize,
		MaxColors: DefaultMaxColors,
		Threshold: DefaultThreshold,
		Tag:       DefaultTag,
		Mode:      Mode32x32,
		Order:     LSBFirst,
	}
}

// NewExactEncoder returns an encoder that only merges colors once
// MaxPaletteColors distinct colors are in use. Rasters with at most that many
// colors are encoded losslessly.
func NewExactEncoder() *Encoder {
	e := NewEncoder()
	e.MaxColors = MaxPaletteColors
	e.Threshold = 0
	return e
}

func (e *Encoder) validate() error {
	switch {
	case e.Width <= 0 || e.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidOptions, e.Width, e.Height)
	case e.MaxColors < 1 || e.MaxColors > MaxPaletteColors:
		return fmt.Errorf("%w: max colors %d", ErrInvalidOptions, e.MaxColors)
	}
	return nil
}

// Encode builds the image payload for pixels, given in row-major order.
func (e *Encoder) Encode(pixels []Color) ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}
	if want := e.Width * e.Height; len(pixels) != want {
		return nil, fmt.Errorf("%w: got %d pixels, want %d", ErrShapeMismatch, len(pixels), want)
	}

	palette, indices := BuildPalette(pixels, e.MaxColors, e.Threshold)
	colors := palette.Bytes()
	packed := PackIndices(indices, BitWidth(len(palette)), e.Order)

	payload := make([]byte, 0, len(e.Tag)+10+len(colors)+len(packed))
	payload = append(payload, e.Tag...)
	payload = append(payload, sentinel)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(7+len(colors)+len(packed)))
	payload = append(payload, e.Mode[:]...)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(palette)))
	payload = append(payload, colors...)
	payload = append(payload, packed...)
	return payload, nil
}
