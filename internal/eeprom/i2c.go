//go:build linux

package eeprom

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

const (
	i2cRdwrIOCTL = 0x0707 // I2C_RDWR ioctl: combined transactions with REPEATED START
	i2cMsgRD     = 0x0001 // i2c_msg flag: read direction
	maxOpsPerSec = 500

	// writeCycle bounds the internal programming time of a 24Cxx part.
	// Datasheets give 5ms; poll a little longer before giving up.
	writeCycle = 20 * time.Millisecond

	// maxReadChunk keeps each read transaction well inside the kernel's
	// per-message limit.
	maxReadChunk = 256
)

// i2cMsg mirrors struct i2c_msg from linux/i2c.h
type i2cMsg struct {
	addr   uint16
	flags  uint16
	length uint16
	_pad   uint16 // struct alignment
	buf    uintptr
}

// i2cRdwr mirrors struct i2c_rdwr_ioctl_data from linux/i2c-dev.h
type i2cRdwr struct {
	msgs  uintptr
	nmsgs uint32
}

// I2C is a 24C-series serial EEPROM (24C32 and up, 16-bit word addresses)
// on a Linux I2C adapter, driven with I2C_RDWR transactions.
type I2C struct {
	mu       sync.Mutex
	devPath  string
	addr     uint16
	size     int
	pageSize int
	fd       int
	limiter  *rate.Limiter
}

// NewI2C creates a driver for the part at 7-bit address addr on the adapter
// at devPath (e.g. /dev/i2c-1). pageSize is the part's write page size.
func NewI2C(devPath string, addr uint16, size, pageSize int) *I2C {
	if pageSize <= 0 {
		pageSize = 32
	}
	return &I2C{
		devPath:  devPath,
		addr:     addr,
		size:     size,
		pageSize: pageSize,
		fd:       -1,
		limiter:  rate.NewLimiter(rate.Limit(maxOpsPerSec), 10),
	}
}

// Open opens the adapter and probes the part with a one byte read.
func (d *I2C) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.size <= 0 || d.size > MaxWordAddressed {
		return fmt.Errorf("i2c: size %d outside the 16-bit word address range (1..%d)", d.size, MaxWordAddressed)
	}
	fd, err := unix.Open(d.devPath, unix.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("i2c: open %s: %w", d.devPath, err)
	}
	if _, err := d.readAt(fd, 0, 1); err != nil {
		unix.Close(fd)
		return fmt.Errorf("i2c: no EEPROM at 0x%02x on %s: %w", d.addr, d.devPath, err)
	}
	d.fd = fd
	slog.Info("i2c: EEPROM detected", "dev", d.devPath, "addr", fmt.Sprintf("0x%02x", d.addr), "size", d.size)
	return nil
}

// Close releases the I2C file descriptor.
func (d *I2C) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fd >= 0 {
		unix.Close(d.fd)
		d.fd = -1
	}
}

func (d *I2C) Len() int { return d.size }

func (d *I2C) Read(ctx context.Context, addr int) (byte, error) {
	b, err := d.ReadBlock(ctx, addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *I2C) Write(ctx context.Context, addr int, val byte) error {
	cur, err := d.Read(ctx, addr)
	if err != nil {
		return err
	}
	if cur == val {
		return nil
	}
	return d.WriteBlock(ctx, addr, []byte{val})
}

func (d *I2C) ReadBlock(ctx context.Context, addr, n int) ([]byte, error) {
	if err := checkRange(addr, n, d.size); err != nil {
		return nil, err
	}
	out := make([]byte, 0, n)
	for off := 0; off < n; off += maxReadChunk {
		chunk := min(maxReadChunk, n-off)
		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		d.mu.Lock()
		if d.fd < 0 {
			d.mu.Unlock()
			return nil, fmt.Errorf("i2c: driver not opened")
		}
		b, err := d.readAt(d.fd, addr+off, chunk)
		d.mu.Unlock()
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// WriteBlock splits data on page boundaries; a page write that crosses one
// wraps around inside the page on these parts.
func (d *I2C) WriteBlock(ctx context.Context, addr int, data []byte) error {
	if err := checkRange(addr, len(data), d.size); err != nil {
		return err
	}
	for len(data) > 0 {
		room := d.pageSize - addr%d.pageSize
		chunk := min(room, len(data))
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		d.mu.Lock()
		if d.fd < 0 {
			d.mu.Unlock()
			return fmt.Errorf("i2c: driver not opened")
		}
		err := d.writePage(d.fd, addr, data[:chunk])
		if err == nil {
			err = d.waitReady(d.fd)
		}
		d.mu.Unlock()
		if err != nil {
			return err
		}
		addr += chunk
		data = data[chunk:]
	}
	return nil
}

// readAt sets the word address and reads n bytes with a REPEATED START:
// START→addr|W→hi→lo→RS→addr|R→data...→NACK→STOP
func (d *I2C) readAt(fd int, mem, n int) ([]byte, error) {
	wbuf := [2]byte{byte(mem >> 8), byte(mem)}
	rbuf := make([]byte, n)
	msgs := [2]i2cMsg{
		{addr: d.addr, flags: 0, length: 2, buf: uintptr(unsafe.Pointer(&wbuf[0]))},
		{addr: d.addr, flags: i2cMsgRD, length: uint16(n), buf: uintptr(unsafe.Pointer(&rbuf[0]))},
	}
	rdwr := i2cRdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 2}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cRdwrIOCTL, uintptr(unsafe.Pointer(&rdwr))); errno != 0 {
		return nil, fmt.Errorf("i2c: I2C_RDWR read 0x%02x mem=0x%04x: %w", d.addr, mem, errno)
	}
	return rbuf, nil
}

// writePage sends [hi, lo, data...] in one message. data must not cross a page.
func (d *I2C) writePage(fd int, mem int, data []byte) error {
	wbuf := make([]byte, 2+len(data))
	wbuf[0], wbuf[1] = byte(mem>>8), byte(mem)
	copy(wbuf[2:], data)
	msgs := [1]i2cMsg{
		{addr: d.addr, flags: 0, length: uint16(len(wbuf)), buf: uintptr(unsafe.Pointer(&wbuf[0]))},
	}
	rdwr := i2cRdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 1}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cRdwrIOCTL, uintptr(unsafe.Pointer(&rdwr))); errno != 0 {
		return fmt.Errorf("i2c: I2C_RDWR write 0x%02x mem=0x%04x: %w", d.addr, mem, errno)
	}
	return nil
}

// waitReady acknowledge-polls the part: it NACKs its address until the
// internal write cycle has finished.
func (d *I2C) waitReady(fd int) error {
	deadline := time.Now().Add(writeCycle)
	wbuf := [2]byte{}
	for {
		msgs := [1]i2cMsg{
			{addr: d.addr, flags: 0, length: 2, buf: uintptr(unsafe.Pointer(&wbuf[0]))},
		}
		rdwr := i2cRdwr{msgs: uintptr(unsafe.Pointer(&msgs[0])), nmsgs: 1}
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), i2cRdwrIOCTL, uintptr(unsafe.Pointer(&rdwr)))
		if errno == 0 {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("i2c: EEPROM 0x%02x busy after write: %w", d.addr, errno)
		}
		time.Sleep(time.Millisecond)
	}
}

var _ Device = (*I2C)(nil)
