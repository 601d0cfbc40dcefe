package inject

import (
	"context"

	"go.viam.com/w5500/buses"
)

// SPI is an injected SPI.
type SPI struct {
	buses.SPI
	OpenHandleFunc func() (buses.SPIHandle, error)
	CloseFunc      func(ctx context.Context) error
}

// OpenHandle calls the injected OpenHandle or the real version.
func (s *SPI) OpenHandle() (buses.SPIHandle, error) {
	if s.OpenHandleFunc == nil {
		return s.SPI.OpenHandle()
	}
	return s.OpenHandleFunc()
}

// Close calls the injected Close or the real version.
func (s *SPI) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		if s.SPI == nil {
			return nil
		}
		return s.SPI.Close(ctx)
	}
	return s.CloseFunc(ctx)
}

// SPIHandle is an injected connection to an SPI bus.
type SPIHandle struct {
	buses.SPIHandle
	XferFunc  func(ctx context.Context, baud uint, chipSelect string, mode uint, tx []byte) ([]byte, error)
	CloseFunc func() error
}

// Xfer calls the injected XferFunc or the real version.
func (s *SPIHandle) Xfer(
	ctx context.Context,
	baud uint,
	chipSelect string,
	mode uint,
	tx []byte,
) ([]byte, error) {
	if s.XferFunc == nil {
		return s.SPIHandle.Xfer(ctx, baud, chipSelect, mode, tx)
	}
	return s.XferFunc(ctx, baud, chipSelect, mode, tx)
}

// Close calls the injected CloseFunc or the real version.
func (s *SPIHandle) Close() error {
	if s.CloseFunc == nil {
		if s.SPIHandle == nil {
			return nil
		}
		return s.SPIHandle.Close()
	}
	return s.CloseFunc()
}

// SPIDevice is an injected SPI device.
type SPIDevice struct {
	buses.SPIDevice
	TransactionFunc func(ctx context.Context, ops []buses.Operation) error
}

// Transaction calls the injected TransactionFunc or the real version.
func (d *SPIDevice) Transaction(ctx context.Context, ops []buses.Operation) error {
	if d.TransactionFunc == nil {
		return d.SPIDevice.Transaction(ctx, ops)
	}
	return d.TransactionFunc(ctx, ops)
}
