package eeprom

import (
	"context"
	"sync"
)

// Mem is a thread-safe in-memory EEPROM for testing and development.
type Mem struct {
	mu        sync.Mutex
	cells     []byte
	writes    int
	programs  int
	failWrite bool
	failRead  bool
}

// NewMem creates an erased in-memory part of n bytes.
func NewMem(n int) *Mem {
	return &Mem{cells: blank(n)}
}

// NewMemFrom creates an in-memory part holding a copy of data.
func NewMemFrom(data []byte) *Mem {
	cells := make([]byte, len(data))
	copy(cells, data)
	return &Mem{cells: cells}
}

// SetFailWrite configures the part to fail all write operations.
func (m *Mem) SetFailWrite(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite = fail
}

// SetFailRead configures the part to fail all read operations.
func (m *Mem) SetFailRead(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead = fail
}

func (m *Mem) Read(ctx context.Context, addr int) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return 0, ErrDevice("mem: read failure configured")
	}
	if err := checkRange(addr, 1, len(m.cells)); err != nil {
		return 0, err
	}
	return m.cells[addr], nil
}

func (m *Mem) Write(ctx context.Context, addr int, val byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWrite {
		return ErrDevice("mem: write failure configured")
	}
	if err := checkRange(addr, 1, len(m.cells)); err != nil {
		return err
	}
	if m.cells[addr] == val {
		return nil
	}
	m.cells[addr] = val
	m.programs++
	return nil
}

func (m *Mem) ReadBlock(ctx context.Context, addr, n int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return nil, ErrDevice("mem: read failure configured")
	}
	if err := checkRange(addr, n, len(m.cells)); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, m.cells[addr:addr+n])
	return out, nil
}

func (m *Mem) WriteBlock(ctx context.Context, addr int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.failWrite {
		return ErrDevice("mem: write failure configured")
	}
	if err := checkRange(addr, len(data), len(m.cells)); err != nil {
		return err
	}
	copy(m.cells[addr:], data)
	m.programs += len(data)
	return nil
}

func (m *Mem) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cells)
}

// Writes returns the number of Write and WriteBlock calls seen so far,
// including failed ones.
func (m *Mem) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Programs returns the number of cells actually reprogrammed. Write skips
// cells that already hold the value; WriteBlock programs every cell.
func (m *Mem) Programs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.programs
}

// Bytes returns a copy of the whole part for testing purposes.
func (m *Mem) Bytes() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.cells))
	copy(out, m.cells)
	return out
}

var _ Device = (*Mem)(nil)
