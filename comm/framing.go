package comm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	startByte = 0x01
	endByte   = 0x02

	// lengthOverhead is the part of the length field covering itself and the
	// opcode.
	lengthOverhead = 3

	// maxFrameLength bounds the length field. The largest frame sent is a
	// full 16 color image; device replies are much shorter.
	maxFrameLength = 1024
)

var (
	ErrChecksum       = errors.New("comm: checksum mismatch")
	ErrMalformedFrame = errors.New("comm: malformed frame")
	ErrUnknownCommand = errors.New("comm: unknown command")
)

// Checksum is the sum of all bytes, truncated to 16 bits.
func Checksum(b []byte) uint16 {
	var sum uint16
	for _, v := range b {
		sum += uint16(v)
	}
	return sum
}

// Frame wraps payload in the link envelope:
// 0x01 | payload | checksum (little endian) | 0x02.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+4)
	out = append(out, startByte)
	out = append(out, payload...)
	out = binary.LittleEndian.AppendUint16(out, Checksum(payload))
	return append(out, endByte)
}

// Encode returns the wire bytes for op with args.
func Encode(op Opcode, args []byte) []byte {
	payload := make([]byte, 0, len(args)+lengthOverhead)
	payload = binary.LittleEndian.AppendUint16(payload, uint16(len(args)+lengthOverhead))
	payload = append(payload, byte(op))
	payload = append(payload, args...)
	return Frame(payload)
}

// ReadFrame reads the next frame from r. Bytes ahead of a start delimiter
// are skipped. A frame that fails its checksum, delimiter or length check
// only consumes its start byte, so a stray 0x01 in line noise cannot swallow
// the frame behind it and the next call resynchronizes on its own.
//
// Frames cut short by the end of the stream are skipped the same way; if
// nothing valid follows, ReadFrame reports io.ErrUnexpectedEOF. Any other
// read error is returned with the partial frame left buffered in r.
func ReadFrame(r *bufio.Reader) (Message, error) {
	truncated := false
	for {
		msg, err := readFrame(r)
		switch {
		case errors.Is(err, errTruncated):
			truncated = true
			r.Discard(1)
			continue
		case err == io.EOF && truncated:
			return Message{}, io.ErrUnexpectedEOF
		}
		return msg, err
	}
}

var errTruncated = errors.New("comm: truncated frame")

func readFrame(r *bufio.Reader) (Message, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return Message{}, err
		}
		if b[0] == startByte {
			break
		}
		r.Discard(1)
	}

	head, err := r.Peek(3)
	if err != nil {
		return Message{}, eofTruncated(err)
	}
	length := int(binary.LittleEndian.Uint16(head[1:]))
	if length < lengthOverhead || length > maxFrameLength {
		r.Discard(1)
		return Message{}, fmt.Errorf("%w: length %d", ErrMalformedFrame, length)
	}

	// start, length, opcode, args, checksum, end delimiter
	frame, err := r.Peek(1 + length + 3)
	if err != nil {
		return Message{}, eofTruncated(err)
	}
	if frame[len(frame)-1] != endByte {
		r.Discard(1)
		return Message{}, fmt.Errorf("%w: missing end delimiter", ErrMalformedFrame)
	}
	inner := frame[1 : len(frame)-3]
	want := binary.LittleEndian.Uint16(frame[len(frame)-3:])
	if got := Checksum(inner); got != want {
		r.Discard(1)
		return Message{}, fmt.Errorf("%w: got 0x%04x, frame says 0x%04x", ErrChecksum, got, want)
	}
	msg := Message{Opcode: Opcode(inner[2]), Args: append([]byte(nil), inner[3:]...)}
	r.Discard(len(frame))
	return msg, nil
}

func eofTruncated(err error) error {
	if err == io.EOF {
		return errTruncated
	}
	return err
}
