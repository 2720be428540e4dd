package settings

import (
	"time"

	"github.com/micro-nova/modcfg/internal/panel"
	"github.com/micro-nova/modcfg/internal/protocol"
)

const (
	defaultPageSize = 32
	defaultBaud     = 9600
	defaultI2CDev   = "/dev/i2c-1"
	defaultI2CAddr  = 0x50
)

// Normalize fills in defaults that depend on other fields. It never rejects
// anything; that is Validate's job.
func Normalize(s *Settings) {
	if s.Store.Size == 0 {
		s.Store.Size = len(s.Store.Defaults)
	}
	// Pad short default lists with the erased value.
	for len(s.Store.Defaults) < s.Store.Size {
		s.Store.Defaults = append(s.Store.Defaults, 0xFF)
	}

	if s.Device.Backend == BackendI2C {
		if s.Device.Path == "" {
			s.Device.Path = defaultI2CDev
		}
		if s.Device.Address == 0 {
			s.Device.Address = defaultI2CAddr
		}
	}
	if s.Device.PageSize == 0 {
		s.Device.PageSize = defaultPageSize
	}

	if s.Protocol.TimeoutMs == 0 {
		s.Protocol.TimeoutMs = int(protocol.DefaultTimeout / time.Millisecond)
	}

	if s.Panel.Type == "" {
		s.Panel.Type = PanelNone
	}
	if s.Panel.LongPressMs == 0 {
		s.Panel.LongPressMs = int(panel.DefaultLongPress / time.Millisecond)
	}
	if s.Panel.DebounceMs == 0 {
		s.Panel.DebounceMs = int(panel.DefaultDebounce / time.Millisecond)
	}
	if s.Panel.PollMs == 0 {
		s.Panel.PollMs = int(panel.DefaultPollInterval / time.Millisecond)
	}
	if s.Panel.Baud == 0 {
		s.Panel.Baud = defaultBaud
	}
}

// Timeout returns the protocol timeout as a duration.
func (p ProtocolSettings) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// DefaultBytes returns the default configuration as bytes. Validate has
// checked every value fits.
func (s StoreSettings) DefaultBytes() []byte {
	out := make([]byte, len(s.Defaults))
	for i, v := range s.Defaults {
		out[i] = byte(v)
	}
	return out
}
