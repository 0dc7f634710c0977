package bitmap

import "errors"

var (
	ErrShapeMismatch    = errors.New("bitmap: raster size does not match frame size")
	ErrInvalidOptions   = errors.New("bitmap: invalid encoder options")
	ErrMalformedPayload = errors.New("bitmap: malformed image payload")
)
