package config

import (
	"context"
	"fmt"
)

// Probe decides at construction whether storage holds a saved configuration.
type Probe int

const (
	// ProbeAllErased treats storage as unconfigured only when every byte of
	// the region reads Unset. A saved array whose first byte is Unset is
	// still loaded.
	ProbeAllErased Probe = iota
	// ProbeFirstByte treats storage as unconfigured when the first byte of
	// the region reads Unset.
	ProbeFirstByte
	// ProbeAlwaysLoad never writes defaults; storage is always loaded.
	ProbeAlwaysLoad
)

var probeNames = map[Probe]string{
	ProbeAllErased:  "all-erased",
	ProbeFirstByte:  "first-byte",
	ProbeAlwaysLoad: "always-load",
}

func (p Probe) String() string {
	if n, ok := probeNames[p]; ok {
		return n
	}
	return fmt.Sprintf("Probe(%d)", int(p))
}

// ParseProbe maps a probe name back to its value. An empty name selects
// ProbeAllErased.
func ParseProbe(name string) (Probe, error) {
	if name == "" {
		return ProbeAllErased, nil
	}
	for p, n := range probeNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("config: unknown probe %q", name)
}

func (s *Store) looksErased(ctx context.Context) (bool, error) {
	switch s.probe {
	case ProbeAlwaysLoad:
		return false, nil
	case ProbeFirstByte:
		b, err := s.dev.Read(ctx, s.base)
		if err != nil {
			return false, err
		}
		return b == Unset, nil
	default:
		data, err := s.dev.ReadBlock(ctx, s.base, len(s.data))
		if err != nil {
			return false, err
		}
		for _, b := range data {
			if b != Unset {
				return false, nil
			}
		}
		return true, nil
	}
}
