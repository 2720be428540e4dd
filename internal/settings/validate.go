package settings

import (
	"fmt"

	"github.com/micro-nova/modcfg/internal/config"
	"github.com/micro-nova/modcfg/internal/eeprom"
)

const maxDialBits = 8

// Validate enforces structural correctness of normalized settings.
func Validate(s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings: nil")
	}
	if err := validateDevice(&s.Device); err != nil {
		return err
	}
	if err := validateStore(&s.Store, s.Device.Size); err != nil {
		return err
	}
	if s.Protocol.TimeoutMs < 0 {
		return fmt.Errorf("protocol.timeout_ms must be >= 0")
	}
	if err := validatePanel(&s.Panel); err != nil {
		return err
	}
	switch s.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level %q invalid", s.LogLevel)
	}
	return nil
}

func validateDevice(d *DeviceSettings) error {
	switch d.Backend {
	case BackendMem:
	case BackendFile:
		if d.Path == "" {
			return fmt.Errorf("device.path required for file backend")
		}
	case BackendI2C:
		if d.Address > 0x7F {
			return fmt.Errorf("device.address 0x%X is not a 7-bit I2C address", d.Address)
		}
		if d.PageSize <= 0 {
			return fmt.Errorf("device.page_size must be > 0")
		}
		if d.Size > eeprom.MaxWordAddressed {
			return fmt.Errorf("device.size %d exceeds the %d bytes a 16-bit word address reaches", d.Size, eeprom.MaxWordAddressed)
		}
	default:
		return fmt.Errorf("device.backend %q invalid (mem, file, i2c)", d.Backend)
	}
	if d.Size <= 0 {
		return fmt.Errorf("device.size must be > 0")
	}
	if d.Watch && d.Backend != BackendFile {
		return fmt.Errorf("device.watch only applies to the file backend")
	}
	return nil
}

func validateStore(st *StoreSettings, deviceSize int) error {
	if st.Size <= 0 {
		return fmt.Errorf("store.size must be > 0 (or give store.defaults)")
	}
	if st.Base < 0 {
		return fmt.Errorf("store.base must be >= 0")
	}
	if st.Base+st.Size > deviceSize {
		return fmt.Errorf("store region [%d, %d) does not fit device of %d bytes",
			st.Base, st.Base+st.Size, deviceSize)
	}
	if len(st.Defaults) > st.Size {
		return fmt.Errorf("store.defaults has %d values, store.size is %d", len(st.Defaults), st.Size)
	}
	for i, v := range st.Defaults {
		if v < 0 || v > 0xFF {
			return fmt.Errorf("store.defaults[%d] = %d does not fit a byte", i, v)
		}
	}
	if _, err := config.ParseProbe(st.Probe); err != nil {
		return fmt.Errorf("store.probe: %w", err)
	}

	seen := make(map[int]bool)
	for _, r := range st.Rules {
		if r.Index < 0 || r.Index >= st.Size {
			return fmt.Errorf("store.rules index %d outside [0, %d)", r.Index, st.Size)
		}
		if seen[r.Index] {
			return fmt.Errorf("store.rules index %d duplicated", r.Index)
		}
		seen[r.Index] = true
		if r.Min < 0 || r.Max > 0xFF || r.Min > r.Max {
			return fmt.Errorf("store.rules index %d: range [%d, %d] invalid", r.Index, r.Min, r.Max)
		}
		if r.Index >= len(st.Defaults) {
			continue
		}
		// Erased bytes may sit outside a rule until first set.
		if d := st.Defaults[r.Index]; d != 0xFF && (d < r.Min || d > r.Max) {
			return fmt.Errorf("store.defaults[%d] = %d violates its rule [%d, %d]", r.Index, d, r.Min, r.Max)
		}
	}
	return nil
}

func validatePanel(p *PanelSettings) error {
	switch p.Type {
	case PanelNone, PanelStdin:
	case PanelGPIO:
		if p.Button == "" {
			return fmt.Errorf("panel.button required for gpio panel")
		}
		if len(p.Dial) == 0 || len(p.Dial) > maxDialBits {
			return fmt.Errorf("panel.dial needs 1 to %d pins, got %d", maxDialBits, len(p.Dial))
		}
	case PanelSerial:
		if p.Port == "" {
			return fmt.Errorf("panel.port required for serial panel")
		}
	default:
		return fmt.Errorf("panel.type %q invalid (none, gpio, serial, stdin)", p.Type)
	}
	if p.LongPressMs <= p.DebounceMs {
		return fmt.Errorf("panel.long_press_ms (%d) must exceed panel.debounce_ms (%d)", p.LongPressMs, p.DebounceMs)
	}
	if p.PollMs <= 0 {
		return fmt.Errorf("panel.poll_ms must be > 0")
	}
	return nil
}

// ValidatorRules converts the rule list for the configuration store.
func (st StoreSettings) ValidatorRules() []config.Rule {
	rules := make([]config.Rule, len(st.Rules))
	for i, r := range st.Rules {
		rules[i] = config.Rule{Index: r.Index, Min: byte(r.Min), Max: byte(r.Max)}
	}
	return rules
}
