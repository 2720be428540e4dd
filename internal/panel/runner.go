package panel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/micro-nova/modcfg/internal/events"
	"github.com/micro-nova/modcfg/internal/protocol"
)

// DefaultPollInterval is how often the runner asks the protocol to expire a
// stale address.
const DefaultPollInterval = time.Second

// Runner feeds a Source into the protocol and injects poll events on a ticker.
type Runner struct {
	src       Source
	proto     Interactor
	ind       Indicator
	pub       Publisher
	pollEvery time.Duration
}

// NewRunner creates a runner. pub may be nil; a non-positive pollEvery
// selects DefaultPollInterval.
func NewRunner(src Source, proto Interactor, ind Indicator, pub Publisher, pollEvery time.Duration) *Runner {
	if pollEvery <= 0 {
		pollEvery = DefaultPollInterval
	}
	if ind == nil {
		ind = LogIndicator{}
	}
	return &Runner{src: src, proto: proto, ind: ind, pub: pub, pollEvery: pollEvery}
}

// Run blocks until ctx is cancelled or the source closes its channel.
func (r *Runner) Run(ctx context.Context) error {
	evs, err := r.src.Events(ctx)
	if err != nil {
		return fmt.Errorf("panel: start source: %w", err)
	}
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-evs:
			if !ok {
				slog.Info("panel: input source closed")
				return nil
			}
			r.handle(ctx, ev)
		case <-ticker.C:
			r.handle(ctx, protocol.PollEvent())
		}
	}
}

func (r *Runner) handle(ctx context.Context, ev protocol.Event) {
	out, err := r.proto.Interact(ctx, ev)
	if err != nil {
		slog.Warn("panel: configuration not persisted", "event", ev.String(), "err", err)
	}
	// Quiet polls are the common case; keep them off the indicator and bus.
	if ev.Kind == protocol.Poll && out == protocol.NoOp {
		return
	}
	r.ind.Show(ctx, ev, out)
	if r.pub != nil {
		r.pub.Publish(events.Notification{
			Type:    events.TypeInteraction,
			Value:   ev.Value,
			Event:   ev.String(),
			Outcome: out.String(),
		})
	}
}
