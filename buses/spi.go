package buses

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"go.viam.com/w5500/logging"
)

// ErrHandleClosed is returned when a handle is used after Close.
var ErrHandleClosed = errors.New("can't use an already closed SPIHandle")

const bitsPerWord = 8

var (
	hostInitOnce sync.Once
	hostInitErr  error
)

// HostInit loads the periph.io host drivers once per process. A failure is logged to the global
// logger and returned on every call.
func HostInit() error {
	hostInitOnce.Do(func() {
		if _, hostInitErr = host.Init(); hostInitErr != nil {
			logging.Global().Debugw("error initializing host", "error", hostInitErr)
		}
	})
	return hostInitErr
}

// NewSPIBus returns a shareable SPI bus backed by the periph.io drivers for the given bus number,
// e.g. "0" for /dev/spidev0.*.
func NewSPIBus(busSelect string, logger logging.Logger) SPI {
	if err := HostInit(); err != nil {
		logger.Debugw("SPI bus created without host drivers", "bus", busSelect, "error", err)
	}
	return &spiBus{bus: busSelect, logger: logger}
}

type spiBus struct {
	mu     sync.Mutex
	bus    string
	logger logging.Logger
}

type spiHandle struct {
	bus      *spiBus
	isClosed bool
}

func (sb *spiBus) OpenHandle() (SPIHandle, error) {
	sb.mu.Lock()
	return &spiHandle{bus: sb}, nil
}

// Close is a no-op; ports are opened per transfer.
func (sb *spiBus) Close(ctx context.Context) error {
	return nil
}

func (sh *spiHandle) connect(baud uint, chipSelect string, mode uint) (spi.PortCloser, spi.Conn, error) {
	name := fmt.Sprintf("SPI%s.%s", sh.bus.bus, chipSelect)
	port, err := spireg.Open(name)
	if err != nil {
		sh.bus.logger.Debugw("error opening SPI port", "port", name, "error", err)
		return nil, nil, err
	}
	conn, err := port.Connect(physic.Hertz*physic.Frequency(baud), spi.Mode(mode), bitsPerWord)
	if err != nil {
		sh.bus.logger.Debugw("error connecting to SPI port", "port", name, "baud", baud, "mode", mode, "error", err)
		return nil, nil, multierr.Combine(err, port.Close())
	}
	return port, conn, nil
}

func (sh *spiHandle) Xfer(ctx context.Context, baud uint, chipSelect string, mode uint, tx []byte) (rx []byte, err error) {
	if sh.isClosed {
		return nil, ErrHandleClosed
	}

	port, conn, err := sh.connect(baud, chipSelect, mode)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Combine(err, port.Close())
	}()
	rx = make([]byte, len(tx))
	return rx, conn.Tx(tx, rx)
}

// TxPackets keeps chipselect asserted between segments using periph's KeepCS packets.
func (sh *spiHandle) TxPackets(ctx context.Context, baud uint, chipSelect string, mode uint, ops []Operation) (err error) {
	if sh.isClosed {
		return ErrHandleClosed
	}

	packets, err := packetsFor(ops)
	if err != nil {
		return err
	}
	if len(packets) == 0 {
		return nil
	}

	port, conn, err := sh.connect(baud, chipSelect, mode)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, port.Close())
	}()
	return conn.TxPackets(packets)
}

func (sh *spiHandle) Close() error {
	if sh.isClosed {
		return ErrHandleClosed
	}
	sh.isClosed = true
	sh.bus.mu.Unlock()
	return nil
}

// packetsFor maps ops onto half-duplex periph packets. Empty segments clock nothing and are
// dropped; every packet but the last keeps chipselect asserted.
func packetsFor(ops []Operation) ([]spi.Packet, error) {
	packets := make([]spi.Packet, 0, len(ops))
	for i, op := range ops {
		if len(op.Buf) == 0 {
			continue
		}
		packet := spi.Packet{BitsPerWord: bitsPerWord, KeepCS: true}
		switch op.Kind {
		case OpKindWrite:
			packet.W = op.Buf
		case OpKindRead:
			packet.R = op.Buf
		default:
			return nil, errors.Errorf("operation %d has unknown kind %s", i, op.Kind)
		}
		packets = append(packets, packet)
	}
	if n := len(packets); n > 0 {
		packets[n-1].KeepCS = false
	}
	return packets, nil
}
