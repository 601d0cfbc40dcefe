// Package fake implements a simulated W5500 that answers frames on a fake SPI bus.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/w5500/buses"
	"go.viam.com/w5500/utils"
	"go.viam.com/w5500/w5500"
)

// memorySize covers every address of the common register block.
const memorySize = 1 << 16

var (
	_ = buses.SPI(&Chip{})
	_ = buses.PacketHandle(&packetHandle{})
)

// Chip is a simulated W5500 register space. Its handles perform full-duplex transfers; PacketBus
// exposes the same chip through handles that accept segmented transactions.
type Chip struct {
	busMu sync.Mutex

	mu           sync.Mutex
	memory       [memorySize]byte
	transactions int
	nextErr      error
}

// NewChip returns a simulated chip with zeroed memory.
func NewChip() *Chip {
	return &Chip{}
}

// OpenHandle locks the fake bus until the handle is closed.
func (c *Chip) OpenHandle() (buses.SPIHandle, error) {
	c.busMu.Lock()
	return &handle{chip: c}, nil
}

// Close is a no-op.
func (c *Chip) Close(ctx context.Context) error {
	return nil
}

// PacketBus returns a bus onto the same chip whose handles implement buses.PacketHandle.
func (c *Chip) PacketBus() buses.SPI {
	return &packetBus{c}
}

// Peek returns a copy of n bytes of memory starting at address.
func (c *Chip) Peek(address uint16, n int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = c.memory[address+uint16(i)]
	}
	return out
}

// Poke overwrites memory starting at address.
func (c *Chip) Poke(address uint16, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, b := range data {
		c.memory[address+uint16(i)] = b
	}
}

// Transactions returns the number of transactions the chip has seen, failed ones included.
func (c *Chip) Transactions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transactions
}

// FailNext makes the next transaction return err without clocking any bytes.
func (c *Chip) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextErr = err
}

// begin starts a transaction. The caller must hold c.mu.
func (c *Chip) begin() error {
	c.transactions++
	err := c.nextErr
	c.nextErr = nil
	return err
}

// session clocks the bytes of one chipselect assertion through the chip.
type session struct {
	chip    *Chip
	clocked int
	header  [w5500.HeaderLen]byte
	op      w5500.OpCode
	address uint16
	err     error
}

// clock shifts one byte in from MOSI and returns the byte the chip drives on MISO. The chip
// answers 0x01, 0x02, 0x03 while the header is shifted in.
func (s *session) clock(mosi byte) byte {
	if s.clocked < w5500.HeaderLen {
		s.header[s.clocked] = mosi
		s.clocked++
		if s.clocked == w5500.HeaderLen {
			s.op, s.address, s.err = w5500.ParseHeader(s.header[:])
		}
		return byte(s.clocked)
	}
	s.clocked++
	if s.err != nil {
		return 0
	}

	var miso byte
	switch s.op {
	case w5500.OpRead:
		miso = s.chip.memory[s.address]
	case w5500.OpWrite:
		s.chip.memory[s.address] = mosi
	}
	s.address++
	return miso
}

func (s *session) end() error {
	if s.err != nil {
		return s.err
	}
	if s.clocked < w5500.HeaderLen {
		return errors.Errorf("frame too short for header: %d bytes", s.clocked)
	}
	return nil
}

type handle struct {
	chip     *Chip
	isClosed bool
}

func (h *handle) Xfer(ctx context.Context, baud uint, chipSelect string, mode uint, tx []byte) ([]byte, error) {
	if h.isClosed {
		return nil, buses.ErrHandleClosed
	}
	h.chip.mu.Lock()
	defer h.chip.mu.Unlock()
	if err := h.chip.begin(); err != nil {
		return nil, err
	}

	s := &session{chip: h.chip}
	rx := make([]byte, len(tx))
	for i, b := range tx {
		rx[i] = s.clock(b)
	}
	if err := s.end(); err != nil {
		return nil, err
	}
	return rx, nil
}

func (h *handle) Close() error {
	if h.isClosed {
		return buses.ErrHandleClosed
	}
	h.isClosed = true
	h.chip.busMu.Unlock()
	return nil
}

// packetBus upgrades the handles of a full-duplex chip bus.
type packetBus struct {
	bus buses.SPI
}

func (pb *packetBus) OpenHandle() (buses.SPIHandle, error) {
	h, err := pb.bus.OpenHandle()
	if err != nil {
		return nil, err
	}
	chipHandle, ok := h.(*handle)
	if !ok {
		return nil, multierr.Combine(utils.NewUnexpectedTypeError(chipHandle, h), h.Close())
	}
	return &packetHandle{chipHandle}, nil
}

func (pb *packetBus) Close(ctx context.Context) error {
	return nil
}

type packetHandle struct {
	*handle
}

// TxPackets clocks each segment in order within one session.
func (ph *packetHandle) TxPackets(ctx context.Context, baud uint, chipSelect string, mode uint, ops []buses.Operation) error {
	if ph.isClosed {
		return buses.ErrHandleClosed
	}
	ph.chip.mu.Lock()
	defer ph.chip.mu.Unlock()
	if err := ph.chip.begin(); err != nil {
		return err
	}

	s := &session{chip: ph.chip}
	for i, op := range ops {
		switch op.Kind {
		case buses.OpKindWrite:
			for _, b := range op.Buf {
				s.clock(b)
			}
		case buses.OpKindRead:
			for j := range op.Buf {
				op.Buf[j] = s.clock(0)
			}
		default:
			return errors.Errorf("operation %d has unknown kind %s", i, op.Kind)
		}
	}
	return s.end()
}
