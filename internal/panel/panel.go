// Package panel connects the operator's physical controls, a value dial and
// a single push-button, to the entry protocol, and reports each outcome back
// through an indicator.
package panel

import (
	"context"
	"log/slog"

	"github.com/micro-nova/modcfg/internal/events"
	"github.com/micro-nova/modcfg/internal/protocol"
)

// Source produces operator events until ctx is cancelled, then closes the
// channel.
type Source interface {
	Events(ctx context.Context) (<-chan protocol.Event, error)
}

// Interactor is the protocol the runner drives.
type Interactor interface {
	Interact(ctx context.Context, ev protocol.Event) (protocol.Outcome, error)
}

// Indicator shows the operator what happened, typically on an LED.
type Indicator interface {
	Show(ctx context.Context, ev protocol.Event, out protocol.Outcome)
}

// Publisher receives a notification for every reported outcome.
type Publisher interface {
	Publish(n events.Notification)
}

// LogIndicator reports outcomes to the structured log.
type LogIndicator struct{}

func (LogIndicator) Show(ctx context.Context, ev protocol.Event, out protocol.Outcome) {
	if out.Failed() {
		slog.Warn("panel: "+out.String(), "event", ev.String())
		return
	}
	slog.Info("panel: "+out.String(), "event", ev.String())
}
