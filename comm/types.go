package comm

import "fmt"

// Opcode identifies a device command.
type Opcode byte

// Opcode values
const (
	UpdateImageFrame     Opcode = 0x44
	GetInfo              Opcode = 0x46
	UpdateAnimationFrame Opcode = 0x49
	UpdateBrightness     Opcode = 0x74
)

var opcodeNames = map[Opcode]string{
	UpdateImageFrame:     "UpdateImageFrame",
	GetInfo:              "GetInfo",
	UpdateAnimationFrame: "UpdateAnimationFrame",
	UpdateBrightness:     "UpdateBrightness",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("Opcode(0x%02x)", byte(o))
}

// Command is an outgoing request.
type Command struct {
	Opcode Opcode
	Args   []byte
}

// Message is a frame received from the device.
type Message struct {
	Opcode Opcode
	Args   []byte
}

func (m Message) String() string {
	return fmt.Sprintf("%v % x", m.Opcode, m.Args)
}
