// Package eeprom provides the non-volatile byte storage backends used by the
// configuration store: an in-memory part for tests and development, an image
// file, and a 24C-series EEPROM on a Linux I2C bus.
package eeprom

import (
	"context"
	"fmt"
)

// MaxWordAddressed is the largest part reachable with 16-bit word addresses.
const MaxWordAddressed = 1 << 16

// Erased is the value of every cell in a blank or freshly erased part.
const Erased byte = 0xFF

// Device is a byte-addressed non-volatile memory.
// All operations are context-aware and safe for concurrent use.
type Device interface {
	// Read reads a single byte.
	Read(ctx context.Context, addr int) (byte, error)

	// Write stores a single byte. The cell is only written when its current
	// content differs from val, which keeps wear down on real parts.
	Write(ctx context.Context, addr int, val byte) error

	// ReadBlock reads n consecutive bytes starting at addr.
	ReadBlock(ctx context.Context, addr, n int) ([]byte, error)

	// WriteBlock stores data at consecutive addresses starting at addr.
	WriteBlock(ctx context.Context, addr int, data []byte) error

	// Len returns the capacity of the device in bytes.
	Len() int
}

// DeviceError is returned when a storage operation fails.
type DeviceError struct {
	msg string
}

func (e DeviceError) Error() string { return e.msg }

// ErrDevice creates a new device error.
func ErrDevice(msg string) error { return DeviceError{msg: msg} }

// checkRange rejects accesses that fall outside [0, size).
func checkRange(addr, n, size int) error {
	if addr < 0 || n < 0 || addr+n > size {
		return ErrDevice(fmt.Sprintf("address range [%d, %d) outside device of %d bytes", addr, addr+n, size))
	}
	return nil
}

// blank returns n bytes in the erased state.
func blank(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = Erased
	}
	return b
}
