package comm

import (
	"fmt"

	"github.com/thiefmaster/matrixctl/bitmap"
)

func NewImageCommand(enc *bitmap.Encoder, pixels []bitmap.Color) (Command, error) {
	payload, err := enc.Encode(pixels)
	if err != nil {
		return Command{}, fmt.Errorf("could not encode image: %w", err)
	}
	return Command{Opcode: UpdateImageFrame, Args: payload}, nil
}

func NewAnimationFrameCommand(args []byte) Command {
	return Command{Opcode: UpdateAnimationFrame, Args: args}
}

// NewBrightnessCommand clamps level to 0..100.
func NewBrightnessCommand(level int) Command {
	if level < 0 {
		level = 0
	} else if level > 100 {
		level = 100
	}
	return Command{Opcode: UpdateBrightness, Args: []byte{byte(level)}}
}

func NewGetInfoCommand() Command {
	return Command{Opcode: GetInfo}
}
