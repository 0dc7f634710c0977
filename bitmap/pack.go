package bitmap

import "math"

// BitOrder selects how index bits are laid out in the packed stream.
type BitOrder int

const (
	// LSBFirst places the least significant bit of each index first and fills
	// bytes from bit 0 upward. This is what the device expects.
	LSBFirst BitOrder = iota
	// MSBFirst places the most significant bit of each index first and fills
	// bytes from bit 7 downward.
	MSBFirst
)

// bitWidthSlack is how far log2(n) may exceed a whole number before another
// bit is spent per index.
const bitWidthSlack = 0.1

// BitWidth returns the number of bits used per index for a palette of n
// colors: floor(log2(n)), plus one when the fractional part of log2(n) is
// above 0.1. This is not a ceiling. A palette of 17 colors gets 4 bits, which
// cannot address its last entry; encoders cap palettes at MaxPaletteColors.
func BitWidth(n int) uint8 {
	if n <= 1 {
		return 0
	}
	exact := math.Log2(float64(n))
	width := math.Floor(exact)
	if exact-width > bitWidthSlack {
		width++
	}
	return uint8(width)
}

// PackIndices concatenates the low width bits of every index into one bit
// stream and returns its whole bytes. Bits left over at the end, fewer than
// eight, are dropped rather than padded.
func PackIndices(indices []uint8, width uint8, order BitOrder) []byte {
	if width > 8 {
		width = 8
	}
	out := make([]byte, 0, len(indices)*int(width)/8)
	if width == 0 {
		return out
	}
	mask := uint32(1)<<width - 1
	var acc uint32
	var n uint8
	for _, idx := range indices {
		v := uint32(idx) & mask
		if order == MSBFirst {
			acc = acc<<width | v
		} else {
			acc |= v << n
		}
		n += width
		for n >= 8 {
			n -= 8
			if order == MSBFirst {
				out = append(out, byte(acc>>n))
			} else {
				out = append(out, byte(acc))
				acc >>= 8
			}
		}
		if order == MSBFirst {
			acc &= 1<<n - 1
		}
	}
	return out
}

// UnpackIndices reverses PackIndices, returning at most count indices. It
// returns fewer when the packed stream is short, which is always the case
// when the final partial byte was dropped. A width of 0 yields count zeros.
func UnpackIndices(packed []byte, width uint8, count int, order BitOrder) []uint8 {
	if width == 0 {
		return make([]uint8, count)
	}
	if width > 8 {
		width = 8
	}
	if avail := len(packed) * 8 / int(width); avail < count {
		count = avail
	}
	out := make([]uint8, 0, count)
	mask := uint32(1)<<width - 1
	var acc uint32
	var n uint8
	for _, b := range packed {
		if order == MSBFirst {
			acc = acc<<8 | uint32(b)
		} else {
			acc |= uint32(b) << n
		}
		n += 8
		for n >= width && len(out) < count {
			n -= width
			if order == MSBFirst {
				out = append(out, uint8(acc>>n&mask))
				acc &= 1<<n - 1
			} else {
				out = append(out, uint8(acc&mask))
				acc >>= width
			}
		}
	}
	return out
}
