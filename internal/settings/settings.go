// Package settings loads the daemon's YAML settings file: which storage part
// holds the configuration, its layout and defaults, validation rules, the
// operator panel and the HTTP listener.
package settings

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Settings is the root of the settings file.
type Settings struct {
	LogLevel string           `yaml:"log_level"`
	LogFile  string           `yaml:"log_file"` // also log here, rotated
	Device   DeviceSettings   `yaml:"device"`
	Store    StoreSettings    `yaml:"store"`
	Protocol ProtocolSettings `yaml:"protocol"`
	Panel    PanelSettings    `yaml:"panel"`
	HTTP     HTTPSettings     `yaml:"http"`
}

// ---- DEVICE ----

// Storage backends.
const (
	BackendMem  = "mem"
	BackendFile = "file"
	BackendI2C  = "i2c"
)

type DeviceSettings struct {
	Backend  string `yaml:"backend"`   // mem | file | i2c
	Size     int    `yaml:"size"`      // capacity in bytes
	Path     string `yaml:"path"`      // image path (file) or adapter (i2c)
	Address  uint16 `yaml:"address"`   // 7-bit I2C address
	PageSize int    `yaml:"page_size"` // I2C write page size
	Watch    bool   `yaml:"watch"`     // reload when the image file changes
}

// ---- STORE ----

type StoreSettings struct {
	Base     int            `yaml:"base"`
	Size     int            `yaml:"size"`
	Defaults []int          `yaml:"defaults"`
	Probe    string         `yaml:"probe"` // all-erased | first-byte | always-load
	Rules    []RuleSettings `yaml:"rules"`
}

type RuleSettings struct {
	Index int `yaml:"index"`
	Min   int `yaml:"min"`
	Max   int `yaml:"max"`
}

// ---- PROTOCOL ----

type ProtocolSettings struct {
	TimeoutMs    int  `yaml:"timeout_ms"`
	StrictExpiry bool `yaml:"strict_expiry"`
}

// ---- PANEL ----

// Panel types.
const (
	PanelNone   = "none"
	PanelGPIO   = "gpio"
	PanelSerial = "serial"
	PanelStdin  = "stdin"
)

type PanelSettings struct {
	Type        string   `yaml:"type"` // none | gpio | serial | stdin
	Button      string   `yaml:"button"`
	Dial        []string `yaml:"dial"`
	LongPressMs int      `yaml:"long_press_ms"`
	DebounceMs  int      `yaml:"debounce_ms"`
	PollMs      int      `yaml:"poll_ms"`
	Port        string   `yaml:"port"`
	Baud        int      `yaml:"baud"`
}

// ---- HTTP ----

type HTTPSettings struct {
	Addr     string `yaml:"addr"`
	Announce bool   `yaml:"announce"` // register over mDNS
	Name     string `yaml:"name"`     // mDNS instance name, default hostname
}

// Load reads, normalizes and validates the settings file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return Parse(data)
}

// Parse decodes settings from YAML, then normalizes and validates them.
func Parse(data []byte) (*Settings, error) {
	s := base()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("settings: parse: %w", err)
	}
	Normalize(s)
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Default returns the settings used when no file is given: a 64-byte
// in-memory part holding a 16-byte erased configuration, no panel.
func Default() *Settings {
	s := base()
	s.Store.Size = 16
	Normalize(s)
	return s
}

// base holds the defaults that do not depend on other fields. The store
// size is left to come from the file.
func base() *Settings {
	return &Settings{
		LogLevel: "info",
		Device: DeviceSettings{
			Backend: BackendMem,
			Size:    64,
		},
		Panel: PanelSettings{
			Type: PanelNone,
		},
		HTTP: HTTPSettings{
			Addr: ":8080",
		},
	}
}
