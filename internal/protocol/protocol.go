// Package protocol implements the two-phase operator entry sequence used to
// edit configuration bytes from a single dial and a single push-button.
//
// A long press stages the dial value as an address. A short press, before the
// timeout, stores the dial value at that address. Poll events let the host
// expire an address nobody followed up on.
package protocol

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTimeout is how long a staged address waits for its value.
const DefaultTimeout = 30 * time.Second

// Target is the configuration store the protocol writes to.
type Target interface {
	Size() int
	SetByte(ctx context.Context, index int, value byte) (bool, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Protocol is the operator entry state machine. It is safe for concurrent
// use; the pending address and its deadline always change together.
type Protocol struct {
	mu       sync.Mutex
	target   Target
	clock    Clock
	timeout  time.Duration
	strict   bool
	pending  bool
	address  int
	deadline time.Time
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithTimeout sets how long a staged address stays valid.
func WithTimeout(d time.Duration) Option {
	return func(p *Protocol) { p.timeout = d }
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(p *Protocol) { p.clock = c }
}

// WithStrictExpiry makes every event, not only polls, drop an expired
// address first. A late short press then reports NoPendingAddress instead of
// writing to a stale address.
func WithStrictExpiry() Option {
	return func(p *Protocol) { p.strict = true }
}

// New creates an idle protocol writing to target.
func New(target Target, opts ...Option) *Protocol {
	p := &Protocol{
		target:  target,
		clock:   systemClock{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the configured address timeout.
func (p *Protocol) Timeout() time.Duration { return p.timeout }

// Pending returns the staged address and its deadline, if any.
func (p *Protocol) Pending() (address int, deadline time.Time, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.address, p.deadline, p.pending
}

// Interact feeds one event through the state machine.
//
// The error is non-nil only when the store accepted a value but failed to
// persist it; the outcome is still ValueCommitted in that case.
func (p *Protocol) Interact(ctx context.Context, ev Event) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	expired := p.pending && now.After(p.deadline)

	if ev.Kind == Poll {
		if !expired {
			return NoOp, nil
		}
		slog.Info("protocol: pending address timed out", "address", p.address)
		p.clear()
		return TimeoutCancelled, nil
	}

	if p.strict && expired {
		slog.Info("protocol: dropping expired address", "address", p.address, "event", ev.String())
		p.clear()
	}

	switch ev.Kind {
	case LongPress:
		if ev.Value < 0 || ev.Value >= p.target.Size() {
			slog.Debug("protocol: address rejected", "address", ev.Value, "size", p.target.Size())
			return AddressRejected, nil
		}
		p.pending = true
		p.address = ev.Value
		p.deadline = now.Add(p.timeout)
		slog.Debug("protocol: address staged", "address", ev.Value, "deadline", p.deadline)
		return AddressAccepted, nil

	case ShortPress:
		if !p.pending {
			return NoPendingAddress, nil
		}
		address := p.address
		p.clear()
		if ev.Value < 0 || ev.Value > 0xFF {
			slog.Debug("protocol: value does not fit a byte", "address", address, "value", ev.Value)
			return ValueRejected, nil
		}
		ok, err := p.target.SetByte(ctx, address, byte(ev.Value))
		if !ok {
			slog.Debug("protocol: value rejected", "address", address, "value", ev.Value)
			return ValueRejected, nil
		}
		slog.Info("protocol: value committed", "address", address, "value", ev.Value)
		return ValueCommitted, err
	}

	slog.Warn("protocol: ignoring event of unknown kind", "kind", int(ev.Kind))
	return NoOp, nil
}

func (p *Protocol) clear() {
	p.pending = false
	p.address = 0
	p.deadline = time.Time{}
}
