package buses

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/w5500/logging"
)

var _ = SPIDevice(&Device{})

// Device is an SPIDevice bound to one chipselect line of a shared SPI bus. Each transaction holds
// the bus lock for its whole duration, so concurrent transactions on the same bus serialize.
type Device struct {
	bus        SPI
	name       string
	chipSelect string
	baud       uint
	mode       uint
	logger     logging.Logger
}

// NewDevice returns a Device for conf on bus. The config is expected to have been validated.
func NewDevice(bus SPI, conf DeviceConfig, logger logging.Logger) *Device {
	return &Device{
		bus:        bus,
		name:       conf.Name,
		chipSelect: conf.ChipSelect,
		baud:       conf.BaudRateOrDefault(),
		mode:       conf.Mode,
		logger:     logger,
	}
}

// Transaction runs ops under a single chipselect assertion. Handles implementing PacketHandle
// receive the segments as-is; any other handle receives one full-duplex transfer of the flattened
// segments, whose received bytes are scattered back into the read buffers.
func (d *Device) Transaction(ctx context.Context, ops []Operation) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	handle, err := d.bus.OpenHandle()
	if err != nil {
		return errors.Wrapf(err, "opening SPI bus for %q", d.name)
	}
	defer func() {
		err = multierr.Combine(err, handle.Close())
	}()

	// Acquiring the bus may have blocked behind another transaction.
	if err := ctx.Err(); err != nil {
		return err
	}

	d.logger.CDebugw(ctx, "spi transaction",
		"device", d.name,
		"chip_select", d.chipSelect,
		"segments", len(ops),
		"bytes", TotalLen(ops))

	if packetHandle, ok := handle.(PacketHandle); ok {
		return packetHandle.TxPackets(ctx, d.baud, d.chipSelect, d.mode, ops)
	}

	tx, err := Flatten(ops)
	if err != nil {
		return err
	}
	if len(tx) == 0 {
		return nil
	}
	rx, err := handle.Xfer(ctx, d.baud, d.chipSelect, d.mode, tx)
	if err != nil {
		return err
	}
	return Scatter(ops, rx)
}
