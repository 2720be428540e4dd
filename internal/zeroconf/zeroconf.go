// Package zeroconf advertises the configuration API as an mDNS/DNS-SD
// service so panels and tools can find a module on the LAN.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD type the API is registered under.
const ServiceType = "_modcfg._tcp"

// Service manages mDNS service registration.
type Service struct {
	name string // instance name, usually the hostname
	port int
	txt  []string
}

// New creates a Service that will advertise the API on port with the given
// TXT records.
func New(name string, port int, txt []string) *Service {
	return &Service{name: name, port: port, txt: txt}
}

// TXT describes a configuration store in TXT record form.
func TXT(base, size int, timeout time.Duration) []string {
	return []string{
		"base=" + strconv.Itoa(base),
		"size=" + strconv.Itoa(size),
		"timeout_ms=" + strconv.FormatInt(timeout.Milliseconds(), 10),
	}
}

// Records returns the TXT records the service announces.
func (s *Service) Records() []string {
	out := make([]string, len(s.txt))
	copy(out, s.txt)
	return out
}

// Start registers the service and blocks until ctx is cancelled, then
// shuts the responder down.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(s.name, ServiceType, "local.", s.port, s.txt, nil)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	slog.Info("zeroconf: registered mDNS service", "name", s.name, "type", ServiceType, "port", s.port, "txt", s.txt)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}
