package bitmap

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Image is a decoded image payload.
type Image struct {
	Mode    [3]byte
	Palette Palette
	// Indices holds one palette index per pixel that survived packing. It is
	// shorter than the raster when trailing bits were dropped.
	Indices []uint8
}

// Decode parses a payload produced by Encode with the same Tag and Order.
func (e *Encoder) Decode(payload []byte) (*Image, error) {
	if !bytes.HasPrefix(payload, e.Tag) {
		return nil, fmt.Errorf("%w: missing tag", ErrMalformedPayload)
	}
	b := payload[len(e.Tag):]
	if len(b) < 8 || b[0] != sentinel {
		return nil, fmt.Errorf("%w: missing header", ErrMalformedPayload)
	}
	total := int(binary.LittleEndian.Uint16(b[1:3]))
	if total != len(b)-1 {
		return nil, fmt.Errorf("%w: length field %d, have %d bytes", ErrMalformedPayload, total, len(b)-1)
	}

	img := &Image{}
	copy(img.Mode[:], b[3:6])
	count := int(binary.LittleEndian.Uint16(b[6:8]))
	b = b[8:]
	if len(b) < 3*count {
		return nil, fmt.Errorf("%w: palette of %d colors truncated", ErrMalformedPayload, count)
	}
	img.Palette = make(Palette, count)
	for i := range img.Palette {
		img.Palette[i] = Color{b[3*i], b[3*i+1], b[3*i+2]}
	}
	img.Indices = UnpackIndices(b[3*count:], BitWidth(count), e.Width*e.Height, e.Order)
	return img, nil
}

// Pixels maps the decoded indices back to colors.
func (img *Image) Pixels() []Color {
	out := make([]Color, len(img.Indices))
	for i, idx := range img.Indices {
		if int(idx) < len(img.Palette) {
			out[i] = img.Palette[idx]
		}
	}
	return out
}
