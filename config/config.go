package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BusConfig defines the broker connection
type BusConfig struct {
	Disable  bool   `json:"disable,omitempty"`
	URL      string `json:"url"`
	Role     string `json:"role"`
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	// Stream backs the note topics; empty publishes notes best-effort
	Stream         string   `json:"stream,omitempty"`
	ReconnectWait  Duration `json:"reconnectWait,omitempty"`
	PublishTimeout Duration `json:"publishTimeout,omitempty"`
	Buffer         int      `json:"buffer,omitempty"` // outbound queue length
}

// MIDIConfig defines input ports and controller interpretation
type MIDIConfig struct {
	Ports     []int  `json:"ports,omitempty"`
	Relative  bool   `json:"relative,omitempty"`
	KeyScope  string `json:"keyScope,omitempty"` // label or channel
	QueueSize int    `json:"queueSize,omitempty"`
}

// KnobsConfig defines knob mapping lookup
type KnobsConfig struct {
	Disable      bool   `json:"disable,omitempty"`
	MappingsFile string `json:"mappingsFile,omitempty"` // replaces the built-in table
}

// LogConfig defines logging
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format,omitempty"`
	File   string `json:"file,omitempty"`
}

// UIConfig stores presentation preferences
type UIConfig struct {
	Headless      bool   `json:"headless,omitempty"`
	MonitorLength int    `json:"monitorLength,omitempty"`
	Palette       string `json:"palette,omitempty"` // GIMP .gpl file
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Addr string `json:"addr,omitempty"` // e.g. ":9464", empty disables
}

// Config is the main configuration structure
type Config struct {
	Bus     BusConfig     `json:"bus"`
	MIDI    MIDIConfig    `json:"midi"`
	Knobs   KnobsConfig   `json:"knobs,omitempty"`
	Log     LogConfig     `json:"log"`
	UI      UIConfig      `json:"ui,omitempty"`
	Metrics MetricsConfig `json:"metrics,omitempty"`
}

// Duration is a time.Duration written as a string ("2s") in JSON
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bus: BusConfig{
			URL:            "nats://localhost:4222",
			Role:           "midi",
			ID:             "any",
			Stream:         "MIDI_NOTES",
			ReconnectWait:  Duration(2 * time.Second),
			PublishTimeout: Duration(2 * time.Second),
			Buffer:         256,
		},
		MIDI: MIDIConfig{
			KeyScope:  "label",
			QueueSize: 1024,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		UI: UIConfig{
			MonitorLength: 16,
		},
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midi-bridge"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from the default path, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFile(path)
}

// LoadFile reads a config file over the defaults. A missing file yields defaults.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating the directory if needed
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// Validate checks values the rest of the program relies on
func (c *Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level: %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format: %q", c.Log.Format))
	}

	switch c.MIDI.KeyScope {
	case "", "label", "channel":
	default:
		errs = append(errs, fmt.Errorf("invalid key scope: %q", c.MIDI.KeyScope))
	}
	for _, p := range c.MIDI.Ports {
		if p < 0 {
			errs = append(errs, fmt.Errorf("invalid port index: %d", p))
		}
	}
	if c.MIDI.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("invalid queue size: %d", c.MIDI.QueueSize))
	}

	if !c.Bus.Disable {
		if c.Bus.URL == "" {
			errs = append(errs, errors.New("bus url is required unless the bus is disabled"))
		}
		if c.Bus.Role == "" || strings.ContainsAny(c.Bus.Role, ". *>") {
			errs = append(errs, fmt.Errorf("invalid bus role: %q", c.Bus.Role))
		}
		if strings.ContainsAny(c.Bus.ID, ". *>") {
			errs = append(errs, fmt.Errorf("invalid bus id: %q", c.Bus.ID))
		}
	}
	if c.Bus.Buffer < 0 {
		errs = append(errs, fmt.Errorf("invalid bus buffer: %d", c.Bus.Buffer))
	}

	if c.UI.MonitorLength < 1 || c.UI.MonitorLength > 1024 {
		errs = append(errs, fmt.Errorf("monitor length must be 1-1024, got %d", c.UI.MonitorLength))
	}

	return errors.Join(errs...)
}
