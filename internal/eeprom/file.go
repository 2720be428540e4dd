package eeprom

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// File is an EEPROM image kept in a regular file.
// A missing file reads as an erased part; a short file is padded with Erased.
// Every write replaces the image atomically.
type File struct {
	mu   sync.Mutex
	path string
	size int
	last []byte // image as this File last wrote it
}

// NewFile creates a file-backed part of size bytes at path.
func NewFile(path string, size int) *File {
	return &File{path: path, size: size}
}

// Path returns the image file path.
func (f *File) Path() string { return f.path }

func (f *File) Len() int { return f.size }

func (f *File) Read(ctx context.Context, addr int) (byte, error) {
	if err := checkRange(addr, 1, f.size); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	img, err := f.image()
	if err != nil {
		return 0, err
	}
	return img[addr], nil
}

func (f *File) Write(ctx context.Context, addr int, val byte) error {
	if err := checkRange(addr, 1, f.size); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	img, err := f.image()
	if err != nil {
		return err
	}
	if img[addr] == val {
		return nil
	}
	img[addr] = val
	return f.writeAtomic(img)
}

func (f *File) ReadBlock(ctx context.Context, addr, n int) ([]byte, error) {
	if err := checkRange(addr, n, f.size); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	img, err := f.image()
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, img[addr:addr+n])
	return out, nil
}

func (f *File) WriteBlock(ctx context.Context, addr int, data []byte) error {
	if err := checkRange(addr, len(data), f.size); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	img, err := f.image()
	if err != nil {
		return err
	}
	copy(img[addr:], data)
	return f.writeAtomic(img)
}

// image reads the whole part from disk. Caller holds f.mu.
func (f *File) image() ([]byte, error) {
	img := blank(f.size)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return img, nil
		}
		return nil, fmt.Errorf("eeprom: read image %s: %w", f.path, err)
	}
	copy(img, data)
	return img, nil
}

func (f *File) writeAtomic(img []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("eeprom: %w", err)
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, img, 0644); err != nil {
		return fmt.Errorf("eeprom: write image: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("eeprom: replace image: %w", err)
	}
	f.last = img
	return nil
}

// Watch is like the package-level Watch on f's image, except that changes
// leaving the image exactly as f last wrote it are not reported. The
// replacements f makes itself therefore never call onChange.
func (f *File) Watch(onChange func()) (*Watcher, error) {
	return watch(f.path, onChange, f.unchangedSinceWrite)
}

// unchangedSinceWrite reports whether the image on disk is the one f last
// wrote.
func (f *File) unchangedSinceWrite() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.last == nil {
		return false
	}
	img, err := f.image()
	if err != nil {
		return false
	}
	return bytes.Equal(img, f.last)
}

var _ Device = (*File)(nil)
