// Package w5500 frames register and buffer accesses to a WIZnet W5500 Ethernet controller over SPI.
//
// Every access is one SPI transaction made of a three byte header followed by the payload:
//
//	[OPCODE][ADDR_H][ADDR_L][DATA...]
//
// The header is always clocked out. The payload is clocked in for reads and out for writes, under
// the same chipselect assertion as the header. Only the common register block is addressed; the
// block-select bits of the control byte are always zero.
package w5500

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/w5500/buses"
)

// OpCode is the leading control byte of a frame.
type OpCode byte

const (
	// OpRead reads from the common register block.
	OpRead OpCode = 0x0F
	// OpWrite writes to the common register block.
	OpWrite OpCode = 0xF0
)

// HeaderLen is the number of header bytes preceding the payload of every frame.
const HeaderLen = 3

func (op OpCode) String() string {
	switch op {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("OpCode(%#02x)", byte(op))
	}
}

// Header encodes the frame header for op at address, high address byte first.
func Header(op OpCode, address uint16) [HeaderLen]byte {
	return [HeaderLen]byte{byte(op), byte(address >> 8), byte(address)}
}

// ParseHeader decodes the header at the start of frame.
func ParseHeader(frame []byte) (OpCode, uint16, error) {
	if len(frame) < HeaderLen {
		return 0, 0, errors.Errorf("frame too short for header: %d bytes", len(frame))
	}
	op := OpCode(frame[0])
	if op != OpRead && op != OpWrite {
		return 0, 0, errors.Errorf("unknown opcode %#02x", frame[0])
	}
	return op, uint16(frame[1])<<8 | uint16(frame[2]), nil
}

// RegisterFramer reads and writes W5500 registers through an SPI device. It holds no state
// besides the device and does not serialize calls; callers sharing one physical bus rely on the
// device to do so.
type RegisterFramer struct {
	dev buses.SPIDevice
}

// NewRegisterFramer returns a RegisterFramer that talks through dev.
func NewRegisterFramer(dev buses.SPIDevice) *RegisterFramer {
	return &RegisterFramer{dev: dev}
}

// ReadFrame fills buf with len(buf) bytes starting at address. Errors from the device are
// returned as-is, in which case the contents of buf are undefined.
func (f *RegisterFramer) ReadFrame(ctx context.Context, address uint16, buf []byte) error {
	header := Header(OpRead, address)
	return f.dev.Transaction(ctx, []buses.Operation{
		buses.Write(header[:]),
		buses.Read(buf),
	})
}

// WriteFrame writes data starting at address. Errors from the device are returned as-is; the
// write may then have partially reached the chip.
func (f *RegisterFramer) WriteFrame(ctx context.Context, address uint16, data []byte) error {
	header := Header(OpWrite, address)
	return f.dev.Transaction(ctx, []buses.Operation{
		buses.Write(header[:]),
		buses.Write(data),
	})
}
