package panel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"go.bug.st/serial"

	"github.com/micro-nova/modcfg/internal/protocol"
)

// ParseLine decodes one console command:
//
//	L<n>  long press with dial value n
//	S<n>  short press with dial value n
//	P     poll
//
// Letters are case-insensitive and a space may separate letter and number.
func ParseLine(line string) (protocol.Event, error) {
	s := strings.TrimSpace(line)
	if s == "" {
		return protocol.Event{}, fmt.Errorf("console: empty command")
	}
	cmd := strings.ToUpper(s[:1])
	arg := strings.TrimSpace(s[1:])

	var kind protocol.EventKind
	switch cmd {
	case "P":
		if arg != "" {
			return protocol.Event{}, fmt.Errorf("console: poll takes no value: %q", line)
		}
		return protocol.PollEvent(), nil
	case "L":
		kind = protocol.LongPress
	case "S":
		kind = protocol.ShortPress
	default:
		return protocol.Event{}, fmt.Errorf("console: unknown command %q", line)
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return protocol.Event{}, fmt.Errorf("console: bad value in %q: %w", line, err)
	}
	return protocol.Event{Kind: kind, Value: n}, nil
}

// Console reads newline-terminated commands (see ParseLine) from R.
// Unparseable lines are logged and skipped. If R is an io.Closer it is
// closed when ctx ends, which unblocks a pending read; a plain reader keeps
// its goroutine until the next line or end of input.
type Console struct {
	R io.Reader
}

func (c *Console) Events(ctx context.Context) (<-chan protocol.Event, error) {
	ch := make(chan protocol.Event, 4)
	done := make(chan struct{})
	if cl, ok := c.R.(io.Closer); ok {
		go func() {
			select {
			case <-ctx.Done():
				cl.Close()
			case <-done:
			}
		}()
	}
	go func() {
		defer close(done)
		scanCommands(ctx, c.R, ch)
	}()
	return ch, nil
}

func scanCommands(ctx context.Context, r io.Reader, ch chan<- protocol.Event) {
	defer close(ch)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		ev, err := ParseLine(line)
		if err != nil {
			slog.Warn("console: ignoring command", "err", err)
			continue
		}
		select {
		case ch <- ev:
		case <-ctx.Done():
			return
		}
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		slog.Warn("console: read failed", "err", err)
	}
}

// Serial is a Console on a UART, for bench setups where a microcontroller
// or a terminal stands in for the physical controls.
type Serial struct {
	Port string // e.g. /dev/ttyUSB0
	Baud int
}

func (s *Serial) Events(ctx context.Context) (<-chan protocol.Event, error) {
	baud := s.Baud
	if baud <= 0 {
		baud = 9600
	}
	port, err := serial.Open(s.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", s.Port, err)
	}
	slog.Debug("console: serial port open", "port", s.Port, "baud", baud)

	// Closing the port unblocks the scanner.
	go func() {
		<-ctx.Done()
		port.Close()
	}()

	ch := make(chan protocol.Event, 4)
	go scanCommands(ctx, port, ch)
	return ch, nil
}
