// Package config holds a module's configuration bytes: a fixed-length array
// mirrored in non-volatile storage, where every write goes through an
// optional validator before it reaches memory and storage.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Unset is the value of an erased or unconfigured byte. GetByte also returns
// it for indexes outside the array.
const Unset byte = 0xFF

var (
	// ErrOutOfRange is reported for an index outside [0, Size()).
	ErrOutOfRange = errors.New("config: index out of range")
	// ErrRejected is reported when the validator declines a value.
	ErrRejected = errors.New("config: value rejected by validator")
)

// Storage is the non-volatile memory the store persists to.
// Addresses are physical: the store adds its base to every index.
type Storage interface {
	Read(ctx context.Context, addr int) (byte, error)
	Write(ctx context.Context, addr int, val byte) error
	ReadBlock(ctx context.Context, addr, n int) ([]byte, error)
	WriteBlock(ctx context.Context, addr int, data []byte) error
}

// Initialiser produces the initial array for a store at base.
type Initialiser func(ctx context.Context, base int) ([]byte, error)

// Store is a fixed-length array of configuration bytes backed by Storage.
// It is safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	dev       Storage
	base      int
	data      []byte
	validator Validator
	onChange  ChangeHandler
	probe     Probe
}

// Option configures a Store.
type Option func(*Store)

// WithValidator gates every SetByte through v.
func WithValidator(v Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithChangeHandler registers h to be told about every committed write.
func WithChangeHandler(h ChangeHandler) Option {
	return func(s *Store) { s.onChange = h }
}

// WithProbe selects how New decides between loading storage and writing
// the defaults out. The default is ProbeAllErased.
func WithProbe(p Probe) Option {
	return func(s *Store) { s.probe = p }
}

// New creates a store holding a copy of defaults, persisted at base.
//
// If storage looks unconfigured (see Probe) the defaults are written out;
// otherwise the previously saved array is loaded over them.
func New(ctx context.Context, dev Storage, base int, defaults []byte, opts ...Option) (*Store, error) {
	if len(defaults) == 0 {
		return nil, fmt.Errorf("config: empty default configuration")
	}
	data := make([]byte, len(defaults))
	copy(data, defaults)
	s := newStore(dev, base, data, opts)

	erased, err := s.looksErased(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: probe storage at %d: %w", base, err)
	}
	if erased {
		slog.Info("config: storage unconfigured, writing defaults", "base", base, "size", len(data))
		if err := s.Save(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := s.Load(ctx); err != nil {
		return nil, err
	}
	slog.Debug("config: loaded saved configuration", "base", base, "size", len(data))
	return s, nil
}

// NewWithInitialiser creates a store whose array is produced by init. The
// array is used as returned; storage is neither probed nor written.
func NewWithInitialiser(ctx context.Context, dev Storage, base int, init Initialiser, opts ...Option) (*Store, error) {
	produced, err := init(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("config: initialiser: %w", err)
	}
	if len(produced) == 0 {
		return nil, fmt.Errorf("config: initialiser produced an empty configuration")
	}
	data := make([]byte, len(produced))
	copy(data, produced)
	return newStore(dev, base, data, opts), nil
}

func newStore(dev Storage, base int, data []byte, opts []Option) *Store {
	s := &Store{dev: dev, base: base, data: data, probe: ProbeAllErased}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Size returns the number of configuration bytes.
func (s *Store) Size() int { return len(s.data) }

// Base returns the storage address of index 0.
func (s *Store) Base() int { return s.base }

// Bytes returns a copy of the whole array.
func (s *Store) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out
}

// GetByte returns the byte at index, or Unset if there is no such byte.
func (s *Store) GetByte(index int) byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRange(index) {
		return Unset
	}
	return s.data[index]
}

// Check reports whether SetByte(index, value) would be accepted, without
// writing anything. It returns ErrOutOfRange, ErrRejected or nil.
func (s *Store) Check(index int, value byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(index, value)
}

// SetByte writes value at index and persists that single byte.
//
// It returns false, with nothing changed and nothing persisted, when index
// is out of range or the validator declines the value. Once accepted the
// in-memory write stands even if persisting fails; the error is returned
// alongside true and SaveByte can retry.
//
// Validators run with the store locked and must not call back into it.
func (s *Store) SetByte(ctx context.Context, index int, value byte) (bool, error) {
	s.mu.Lock()
	if err := s.check(index, value); err != nil {
		s.mu.Unlock()
		slog.Debug("config: write refused", "index", index, "value", value, "err", err)
		return false, nil
	}
	s.data[index] = value
	err := s.saveByte(ctx, index)
	handler := s.onChange
	s.mu.Unlock()

	if handler != nil {
		handler.Changed(index, value)
	}
	return true, err
}

// SaveByte persists the in-memory value at index, bypassing validation.
func (s *Store) SaveByte(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inRange(index) {
		return ErrOutOfRange
	}
	return s.saveByte(ctx, index)
}

// Save persists the whole array in one block write.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dev.WriteBlock(ctx, s.base, s.data); err != nil {
		return fmt.Errorf("config: save %d bytes at %d: %w", len(s.data), s.base, err)
	}
	return nil
}

// Load replaces the whole array with the one held in storage.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.dev.ReadBlock(ctx, s.base, len(s.data))
	if err != nil {
		return fmt.Errorf("config: load %d bytes at %d: %w", len(s.data), s.base, err)
	}
	if len(data) != len(s.data) {
		return fmt.Errorf("config: load: storage returned %d bytes, want %d", len(data), len(s.data))
	}
	copy(s.data, data)
	return nil
}

// Erase sets every byte to Unset, in memory and in storage, index by index.
func (s *Store) Erase(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = Unset
		if err := s.saveByte(ctx, i); err != nil {
			return err
		}
	}
	slog.Info("config: configuration erased", "base", s.base, "size", len(s.data))
	return nil
}

func (s *Store) inRange(index int) bool {
	return index >= 0 && index < len(s.data)
}

// check is Check without locking.
func (s *Store) check(index int, value byte) error {
	if !s.inRange(index) {
		return ErrOutOfRange
	}
	if s.validator != nil && !s.validator.Validate(index, value) {
		return ErrRejected
	}
	return nil
}

// saveByte persists data[index]. Caller holds s.mu.
func (s *Store) saveByte(ctx context.Context, index int) error {
	if err := s.dev.Write(ctx, s.base+index, s.data[index]); err != nil {
		return fmt.Errorf("config: persist index %d: %w", index, err)
	}
	return nil
}
