//go:build !linux

package panel

import (
	"context"
	"fmt"

	"github.com/micro-nova/modcfg/internal/protocol"
)

// Events always fails: GPIO access needs a Linux host.
func (g *GPIO) Events(ctx context.Context) (<-chan protocol.Event, error) {
	return nil, fmt.Errorf("gpio: panel requires Linux")
}
