package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/shazow/autojoin/wifi"
)

// Config is the device configuration. Zero values in a file keep the
// defaults.
type Config struct {
	// Interface is the wireless interface to drive, e.g. "wlan0". Empty picks
	// the first wireless device.
	Interface string `toml:"interface"`
	// Radio selects the driver: "auto", "networkmanager", "wpa" or "mock".
	Radio string `toml:"radio"`

	// Storage selects where credentials are kept: "file" or "bolt".
	Storage     string `toml:"storage"`
	StoragePath string `toml:"storage_path"`

	// Listen is the configuration portal address.
	Listen string `toml:"listen"`

	// TickInterval is the wall-clock length of one tick.
	TickInterval time.Duration `toml:"tick_interval"`
	// TimeoutTicks is how many ticks each candidate gets to connect.
	TimeoutTicks int `toml:"timeout_ticks"`
	// MaxScanPolls is how many ticks a scan gets before it counts as empty.
	MaxScanPolls int `toml:"max_scan_polls"`

	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration: 100ms ticks and 10s per
// candidate.
func Default() Config {
	return Config{
		Radio:        "auto",
		Storage:      "file",
		StoragePath:  "wifi-aps.json",
		Listen:       ":80",
		TickInterval: 100 * time.Millisecond,
		TimeoutTicks: 100,
		MaxScanPolls: wifi.DefaultMaxPolls,
		LogLevel:     "info",
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads TOML from r over the defaults. Unknown keys are an error, to
// catch typos in hand-edited files.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("unknown config keys %s: %w", strings.Join(keys, ", "), wifi.ErrInvalid)
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration for values we can't run with.
func (c Config) Validate() error {
	switch c.Radio {
	case "auto", "networkmanager", "wpa", "mock":
	default:
		return fmt.Errorf("radio %q: %w", c.Radio, wifi.ErrInvalid)
	}
	switch c.Storage {
	case "file", "bolt":
	default:
		return fmt.Errorf("storage %q: %w", c.Storage, wifi.ErrInvalid)
	}
	if c.StoragePath == "" {
		return fmt.Errorf("storage_path is empty: %w", wifi.ErrInvalid)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive: %w", wifi.ErrInvalid)
	}
	if c.TimeoutTicks < 1 {
		return fmt.Errorf("timeout_ticks must be at least 1: %w", wifi.ErrInvalid)
	}
	if c.MaxScanPolls < 1 {
		return fmt.Errorf("max_scan_polls must be at least 1: %w", wifi.ErrInvalid)
	}
	return nil
}
