package protocol

import "fmt"

// EventKind distinguishes the three inputs the protocol understands.
type EventKind int

const (
	// Poll carries no operator input; it only asks the protocol to drop an
	// expired pending address.
	Poll EventKind = iota
	// LongPress stages Value as the address to configure.
	LongPress
	// ShortPress supplies Value for the staged address.
	ShortPress
)

func (k EventKind) String() string {
	switch k {
	case Poll:
		return "poll"
	case LongPress:
		return "long"
	case ShortPress:
		return "short"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// ParseEventKind maps "poll", "long" or "short" to an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	switch s {
	case "poll":
		return Poll, nil
	case "long":
		return LongPress, nil
	case "short":
		return ShortPress, nil
	}
	return 0, fmt.Errorf("protocol: unknown event kind %q", s)
}

// Event is one operator input: the dial value sampled when the button was
// released, and how long the button was held.
type Event struct {
	Kind  EventKind
	Value int
}

// PollEvent returns a timeout-check event.
func PollEvent() Event { return Event{Kind: Poll} }

// LongPressEvent returns an address-selection event.
func LongPressEvent(value int) Event { return Event{Kind: LongPress, Value: value} }

// ShortPressEvent returns a value-entry event.
func ShortPressEvent(value int) Event { return Event{Kind: ShortPress, Value: value} }

func (e Event) String() string {
	if e.Kind == Poll {
		return "poll"
	}
	return fmt.Sprintf("%s(%d)", e.Kind, e.Value)
}

// Outcome is the result of handing one Event to the protocol.
type Outcome int

const (
	// NoOp: a poll found nothing to cancel.
	NoOp Outcome = iota
	// AddressAccepted: an address is staged and a value is expected.
	AddressAccepted
	// AddressRejected: the long-press value is not a valid index.
	AddressRejected
	// ValueCommitted: the value was stored at the staged address.
	ValueCommitted
	// ValueRejected: the store declined the value; the address was dropped.
	ValueRejected
	// NoPendingAddress: a short press arrived with nothing staged.
	NoPendingAddress
	// TimeoutCancelled: a poll dropped an address that waited too long.
	TimeoutCancelled
)

var outcomeNames = [...]string{
	NoOp:             "no-op",
	AddressAccepted:  "address-accepted",
	AddressRejected:  "address-rejected",
	ValueCommitted:   "value-committed",
	ValueRejected:    "value-rejected",
	NoPendingAddress: "no-pending-address",
	TimeoutCancelled: "timeout-cancelled",
}

func (o Outcome) String() string {
	if o >= 0 && int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// MarshalText encodes the outcome by name, so JSON carries "value-committed".
func (o Outcome) MarshalText() ([]byte, error) {
	if o < 0 || int(o) >= len(outcomeNames) {
		return nil, fmt.Errorf("protocol: invalid outcome %d", int(o))
	}
	return []byte(outcomeNames[o]), nil
}

// UnmarshalText decodes an outcome name.
func (o *Outcome) UnmarshalText(text []byte) error {
	for i, n := range outcomeNames {
		if n == string(text) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("protocol: unknown outcome %q", text)
}

// Failed reports whether the outcome signals an operator mistake.
func (o Outcome) Failed() bool {
	switch o {
	case AddressRejected, ValueRejected, NoPendingAddress, TimeoutCancelled:
		return true
	}
	return false
}
