package loader

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Command opcodes sent to the bootloader.
const (
	OpProbe     byte = 0x01
	OpLoad      byte = 0x03
	OpCall      byte = 0x05
	OpJump      byte = 0x06
	OpRead      byte = 0x08
	OpWrite     byte = 0x0A
	OpReadBlock byte = 0x0C
)

// Acknowledgements sent back by the bootloader.
const (
	AckProbe     byte = 0x02
	AckLoad      byte = 0x04
	AckStart     byte = 0x07
	AckRead      byte = 0x09
	AckWrite     byte = 0x0B
	AckReadBlock byte = 0x0D
)

const addressSpace = uint64(1) << 32

// UnitSize is the granularity of a memory read or write.
type UnitSize byte

// Supported unit sizes. The value is also the size byte in the frame.
const (
	Byte UnitSize = 1
	Word UnitSize = 2
	Long UnitSize = 4
)

// IsValid checks if it's a supported unit size.
func (s UnitSize) IsValid() bool {
	return s == Byte || s == Word || s == Long
}

// String implements fmt.Stringer.
func (s UnitSize) String() string {
	switch s {
	case Byte:
		return "byte"
	case Word:
		return "word"
	case Long:
		return "long"
	}
	return fmt.Sprintf("UnitSize(%d)", byte(s))
}

// StartMode selects how loaded code is entered.
type StartMode int

const (
	// Call enters the code with JSR, the bootloader resumes if it returns.
	Call StartMode = iota
	// Jump enters the code with JMP.
	Jump
)

// Opcode returns the command opcode for the mode.
func (m StartMode) Opcode() byte {
	if m == Jump {
		return OpJump
	}
	return OpCall
}

// Frame is an encoded command ready to be written to the link.
type Frame []byte

// WriteTo implements io.WriterTo.
func (f Frame) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f)
	return int64(n), err
}

// ProbeFrame encodes the handshake probe.
func ProbeFrame() Frame {
	return Frame{OpProbe}
}

// LoadFrame encodes a binary load of payload at base.
func LoadFrame(base uint32, payload []byte) Frame {
	f := make(Frame, 9, 9+len(payload))
	f[0] = OpLoad
	binary.BigEndian.PutUint32(f[1:], uint32(len(payload)))
	binary.BigEndian.PutUint32(f[5:], base)
	return append(f, payload...)
}

// StartFrame encodes an execute or jump command.
func StartFrame(mode StartMode, addr uint32) Frame {
	f := make(Frame, 5)
	f[0] = mode.Opcode()
	binary.BigEndian.PutUint32(f[1:], addr)
	return f
}

// ReadFrame encodes a memory read of count units of size at addr. Block
// reads keep the target address fixed for every unit.
func ReadFrame(size UnitSize, count, addr uint32, block bool) Frame {
	f := make(Frame, 10)
	f[0] = OpRead
	if block {
		f[0] = OpReadBlock
	}
	f[1] = byte(size)
	binary.BigEndian.PutUint32(f[2:], count)
	binary.BigEndian.PutUint32(f[6:], addr)
	return f
}

// WriteFrame encodes a memory write. payload must already be padded to
// size, the length field is its byte count.
func WriteFrame(size UnitSize, addr uint32, payload []byte) Frame {
	f := make(Frame, 10, 10+len(payload))
	f[0], f[1] = OpWrite, byte(size)
	binary.BigEndian.PutUint32(f[2:], uint32(len(payload)))
	binary.BigEndian.PutUint32(f[6:], addr)
	return append(f, payload...)
}

// PadToUnit prepends zero bytes to data until its length is a multiple of
// size. data is returned as-is when no padding is needed.
func PadToUnit(data []byte, size UnitSize) []byte {
	if size <= Byte {
		return data
	}
	rem := len(data) % int(size)
	if rem == 0 {
		return data
	}
	padded := make([]byte, int(size)-rem, len(data)+int(size)-rem)
	return append(padded, data...)
}
