//go:build linux

package panel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/micro-nova/modcfg/internal/protocol"
)

// edgeWait bounds each blocking edge wait so cancellation is noticed.
const edgeWait = 100 * time.Millisecond

// Events configures the pins and starts watching the button.
func (g *GPIO) Events(ctx context.Context) (<-chan protocol.Event, error) {
	// Initialize periph.io GPIO host driver
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("gpio: host init failed: %w", err)
	}

	btn := gpioreg.ByName(g.Button)
	if btn == nil {
		return nil, fmt.Errorf("gpio: failed to open %s (button)", g.Button)
	}
	if err := btn.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("gpio: configure %s: %w", g.Button, err)
	}

	dial := make([]gpio.PinIO, len(g.Dial))
	for i, name := range g.Dial {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("gpio: failed to open %s (dial bit %d)", name, i)
		}
		if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("gpio: configure %s: %w", name, err)
		}
		dial[i] = p
	}

	slog.Debug("gpio: panel ready", "button", g.Button, "dial", g.Dial)

	ch := make(chan protocol.Event, 4)
	go g.watch(ctx, btn, dial, ch)
	return ch, nil
}

func (g *GPIO) watch(ctx context.Context, btn gpio.PinIO, dial []gpio.PinIO, ch chan<- protocol.Event) {
	defer close(ch)
	defer btn.Halt()

	long, debounce := g.timing()
	var pressedAt time.Time
	pressed := false

	for ctx.Err() == nil {
		if !btn.WaitForEdge(edgeWait) {
			continue
		}
		now := time.Now()
		down := btn.Read() == gpio.Low
		switch {
		case down && !pressed:
			pressed = true
			pressedAt = now
		case !down && pressed:
			pressed = false
			kind, ok := Classify(now.Sub(pressedAt), long, debounce)
			if !ok {
				continue
			}
			// Sample the dial on release, once the operator has committed.
			ev := protocol.Event{Kind: kind, Value: readDial(dial)}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func readDial(dial []gpio.PinIO) int {
	bits := make([]bool, len(dial))
	for i, p := range dial {
		bits[i] = p.Read() == gpio.Low
	}
	return DialValue(bits)
}
