// Package buses contains the SPI bus abstractions register-level chip drivers talk through.
package buses

import (
	"context"
)

// SPI represents a shareable SPI bus.
type SPI interface {
	// OpenHandle locks the shared bus and returns a handle interface that MUST be closed when done.
	OpenHandle() (SPIHandle, error)
	Close(ctx context.Context) error
}

// SPIHandle is similar to an io handle. It MUST be closed to release the bus.
type SPIHandle interface {
	// Xfer performs a single SPI transfer, that is, the complete transaction from chipselect
	// enable to chipselect disable. SPI transfers are synchronous, number of bytes received will
	// be equal to the number of bytes sent. Write-only transfers can just discard the returned
	// bytes. Read-only transfers transmit a request/address and continue with some number of null
	// bytes to equal the expected size of the returning data.
	Xfer(
		ctx context.Context,
		baud uint,
		chipSelect string,
		mode uint,
		tx []byte,
	) ([]byte, error)

	// Close closes the handle and releases the lock on the bus.
	Close() error
}

// PacketHandle is implemented by handles that can keep chipselect asserted across several
// half-duplex segments without flattening them into one full-duplex buffer.
type PacketHandle interface {
	SPIHandle

	// TxPackets runs ops in order under a single chipselect assertion.
	TxPackets(
		ctx context.Context,
		baud uint,
		chipSelect string,
		mode uint,
		ops []Operation,
	) error
}

// SPIDevice is a single chip on an SPI bus that can run ordered multi-segment transactions.
type SPIDevice interface {
	// Transaction runs every operation in order under one chipselect assertion and reports a
	// single outcome for the whole list. Read operations fill their buffers in place.
	Transaction(ctx context.Context, ops []Operation) error
}
