package panel

import (
	"time"

	"github.com/micro-nova/modcfg/internal/protocol"
)

// Button timing defaults.
const (
	DefaultLongPress = time.Second
	DefaultDebounce  = 25 * time.Millisecond
)

// GPIO reads a push-button and a binary-coded rotary dial wired to GPIO
// pins. All inputs are active low with internal pull-ups: the button shorts
// its pin to ground while held, and dial bit i is set when Dial[i] reads low.
type GPIO struct {
	Button    string   // button pin name, e.g. "GPIO17"
	Dial      []string // dial pin names, least significant bit first
	LongPress time.Duration
	Debounce  time.Duration
}

// Classify turns a press duration into an event kind. Presses shorter than
// debounce are contact bounce and report false.
func Classify(held, long, debounce time.Duration) (protocol.EventKind, bool) {
	if held < debounce {
		return 0, false
	}
	if held >= long {
		return protocol.LongPress, true
	}
	return protocol.ShortPress, true
}

// DialValue assembles dial bits, least significant first.
func DialValue(bits []bool) int {
	v := 0
	for i, on := range bits {
		if on {
			v |= 1 << uint(i)
		}
	}
	return v
}

func (g *GPIO) timing() (long, debounce time.Duration) {
	long, debounce = g.LongPress, g.Debounce
	if long <= 0 {
		long = DefaultLongPress
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return long, debounce
}
