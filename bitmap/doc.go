/*
Package bitmap encodes small RGB rasters into the image payload understood by
the LED matrix.

A raster is reduced to a palette of at most MaxColors entries, every pixel is
mapped to a palette index, and the index stream is bit-packed at the minimum
width the palette needs. The payload is laid out as:

	tag | 0xAA | total_lo total_hi | mode[3] | count_lo count_hi | rgb... | packed...

where total is 7 plus the palette and packed byte lengths, and count is the
number of palette entries. Packed index bits that do not fill a whole byte at
the end of the stream are not transmitted.
*/
package bitmap
