package bitmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitWidth(t *testing.T) {
	tests := []struct {
		colors int
		want   uint8
	}{
		{0, 0},
		{1, 0},
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 3},
		{8, 3},
		{9, 4},
		{16, 4},
		{17, 4},
		{18, 5},
		{128, 7},
		{256, 8},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BitWidth(tt.colors), "palette of %d", tt.colors)
	}
}

func TestBitWidthMonotonic(t *testing.T) {
	prev := BitWidth(0)
	for n := 1; n <= 256; n++ {
		w := BitWidth(n)
		assert.GreaterOrEqual(t, w, prev, "palette of %d", n)
		prev = w
	}
}

func TestPackIndices(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint8
		width   uint8
		order   BitOrder
		want    []byte
	}{
		{"zero width", []uint8{0, 0, 0, 0}, 0, LSBFirst, []byte{}},
		{"alternating lsb", []uint8{0, 1, 0, 1, 0, 1, 0, 1}, 1, LSBFirst, []byte{0xaa}},
		{"alternating msb", []uint8{0, 1, 0, 1, 0, 1, 0, 1}, 1, MSBFirst, []byte{0x55}},
		{"two bits lsb", []uint8{1, 2, 3, 0}, 2, LSBFirst, []byte{0x39}},
		{"two bits msb", []uint8{1, 2, 3, 0}, 2, MSBFirst, []byte{0x6c}},
		{"straddle lsb", []uint8{5, 3, 7}, 3, LSBFirst, []byte{0xdd}},
		{"straddle msb", []uint8{5, 3, 7}, 3, MSBFirst, []byte{0xaf}},
		{"partial dropped", []uint8{1, 1, 1, 1, 1}, 1, LSBFirst, []byte{}},
		{"truncated to width", []uint8{0xff, 0x00}, 4, LSBFirst, []byte{0x0f}},
		{"full bytes", []uint8{0x12, 0x34}, 8, LSBFirst, []byte{0x12, 0x34}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PackIndices(tt.indices, tt.width, tt.order))
		})
	}
}

func TestPackIndicesLength(t *testing.T) {
	indices := make([]uint8, 1024)
	for width := uint8(0); width <= 8; width++ {
		assert.Len(t, PackIndices(indices, width, LSBFirst), 1024*int(width)/8)
	}
	assert.Len(t, PackIndices(make([]uint8, 10), 3, LSBFirst), 3)
}

func TestUnpackIndicesRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, order := range []BitOrder{LSBFirst, MSBFirst} {
		for width := uint8(1); width <= 8; width++ {
			indices := make([]uint8, 64)
			for i := range indices {
				indices[i] = uint8(r.Intn(1 << width))
			}
			packed := PackIndices(indices, width, order)
			assert.Equal(t, indices, UnpackIndices(packed, width, len(indices), order), "width %d order %d", width, order)
		}
	}
}

func TestUnpackIndicesTruncated(t *testing.T) {
	indices := []uint8{1, 0, 1, 1, 0, 1, 0, 0, 1, 1}
	packed := PackIndices(indices, 1, LSBFirst)
	assert.Equal(t, indices[:8], UnpackIndices(packed, 1, len(indices), LSBFirst))
	assert.Equal(t, []uint8{0, 0, 0}, UnpackIndices(nil, 0, 3, LSBFirst))
}
