package buses

import (
	"fmt"

	"github.com/pkg/errors"
)

// OperationKind tags the direction of a transaction segment.
type OperationKind uint8

const (
	// OpKindWrite clocks known bytes out to the device.
	OpKindWrite OperationKind = iota
	// OpKindRead clocks bytes in from the device into a caller supplied buffer.
	OpKindRead
)

func (k OperationKind) String() string {
	switch k {
	case OpKindWrite:
		return "Write"
	case OpKindRead:
		return "Read"
	default:
		return fmt.Sprintf("OperationKind(%d)", uint8(k))
	}
}

// Operation is one segment of an SPI transaction. For reads, Buf is filled in place, so its
// length is the number of bytes read.
type Operation struct {
	Kind OperationKind
	Buf  []byte
}

// Write returns an operation that clocks data out to the device.
func Write(data []byte) Operation {
	return Operation{Kind: OpKindWrite, Buf: data}
}

// Read returns an operation that clocks len(buf) bytes in from the device.
func Read(buf []byte) Operation {
	return Operation{Kind: OpKindRead, Buf: buf}
}

func (op Operation) String() string {
	return fmt.Sprintf("%s(% x)", op.Kind, op.Buf)
}

// TotalLen returns the number of bytes clocked by ops.
func TotalLen(ops []Operation) int {
	n := 0
	for _, op := range ops {
		n += len(op.Buf)
	}
	return n
}

// Flatten lays ops out as a single full-duplex transmit buffer. Write segments contribute their
// bytes; read segments contribute zero bytes to clock out while the device answers.
func Flatten(ops []Operation) ([]byte, error) {
	tx := make([]byte, 0, TotalLen(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpKindWrite:
			tx = append(tx, op.Buf...)
		case OpKindRead:
			tx = append(tx, make([]byte, len(op.Buf))...)
		default:
			return nil, errors.Errorf("operation %d has unknown kind %s", i, op.Kind)
		}
	}
	return tx, nil
}

// Scatter copies the received bytes of a full-duplex transfer of Flatten(ops) back into the read
// segments of ops.
func Scatter(ops []Operation, rx []byte) error {
	if total := TotalLen(ops); len(rx) != total {
		return errors.Errorf("full-duplex transfer returned %d bytes, expected %d", len(rx), total)
	}
	offset := 0
	for _, op := range ops {
		if op.Kind == OpKindRead {
			copy(op.Buf, rx[offset:offset+len(op.Buf)])
		}
		offset += len(op.Buf)
	}
	return nil
}
