//go:build !linux

package eeprom

import "context"

var errNoI2C = ErrDevice("i2c: EEPROM access requires Linux")

// I2C is unavailable off Linux; every operation fails.
type I2C struct {
	size int
}

// NewI2C returns a driver whose operations all fail on this platform.
func NewI2C(devPath string, addr uint16, size, pageSize int) *I2C {
	return &I2C{size: size}
}

func (d *I2C) Open() error { return errNoI2C }

func (d *I2C) Close() {}

func (d *I2C) Len() int { return d.size }

func (d *I2C) Read(ctx context.Context, addr int) (byte, error) { return 0, errNoI2C }

func (d *I2C) Write(ctx context.Context, addr int, val byte) error { return errNoI2C }

func (d *I2C) ReadBlock(ctx context.Context, addr, n int) ([]byte, error) { return nil, errNoI2C }

func (d *I2C) WriteBlock(ctx context.Context, addr int, data []byte) error { return errNoI2C }

var _ Device = (*I2C)(nil)
