package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"midi-bridge/config"
)

// CLIConfig holds command-line configuration. Set values override the
// config file.
type CLIConfig struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	LogFile    string
	Headless   bool
	ListPorts  bool

	BusDisable  bool
	BusURL      string
	BusRole     string
	BusID       string
	BusUser     string
	BusPassword string

	Relative bool
	KeyScope string
	Ports    []int

	KnobsDisable bool
	MappingsFile string

	MonitorLength int
	MetricsAddr   string
}

func parseFlags(args []string, stderr io.Writer) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	// Define flags with environment variable fallback
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("MIDI_BRIDGE_CONFIG", ""),
		"Path to configuration file, default ~/.config/midi-bridge/config.json (env: MIDI_BRIDGE_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MIDI_BRIDGE_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: MIDI_BRIDGE_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MIDI_BRIDGE_LOG_FORMAT", ""),
		"Log format: console, json (env: MIDI_BRIDGE_LOG_FORMAT)")

	fs.StringVar(&cfg.LogFile, "log-file",
		getEnv("MIDI_BRIDGE_LOG_FILE", ""),
		"Log file, default stderr when headless and ~/.config/midi-bridge/debug.log otherwise (env: MIDI_BRIDGE_LOG_FILE)")

	fs.BoolVar(&cfg.Headless, "headless",
		getEnvBool("MIDI_BRIDGE_HEADLESS", false),
		"Run without the terminal UI (env: MIDI_BRIDGE_HEADLESS)")

	fs.BoolVar(&cfg.ListPorts, "list", false, "List MIDI input ports and exit")

	fs.BoolVar(&cfg.BusDisable, "bus.disable",
		getEnvBool("MIDI_BRIDGE_BUS_DISABLE", false),
		"Do not connect to the message bus (env: MIDI_BRIDGE_BUS_DISABLE)")

	fs.StringVar(&cfg.BusURL, "bus.url",
		getEnv("MIDI_BRIDGE_BUS_URL", ""),
		"Broker URL (env: MIDI_BRIDGE_BUS_URL)")

	fs.StringVar(&cfg.BusRole, "bus.role",
		getEnv("MIDI_BRIDGE_BUS_ROLE", ""),
		"Agent role used in topic names (env: MIDI_BRIDGE_BUS_ROLE)")

	fs.StringVar(&cfg.BusID, "bus.id",
		getEnv("MIDI_BRIDGE_BUS_ID", ""),
		"Agent id used in topic names (env: MIDI_BRIDGE_BUS_ID)")

	fs.StringVar(&cfg.BusUser, "bus.user",
		getEnv("MIDI_BRIDGE_BUS_USER", ""),
		"Broker username (env: MIDI_BRIDGE_BUS_USER)")

	fs.StringVar(&cfg.BusPassword, "bus.password",
		getEnv("MIDI_BRIDGE_BUS_PASSWORD", ""),
		"Broker password (env: MIDI_BRIDGE_BUS_PASSWORD)")

	fs.BoolVar(&cfg.Relative, "midi.relative",
		getEnvBool("MIDI_BRIDGE_RELATIVE", false),
		"Treat controllers as relative encoders (env: MIDI_BRIDGE_RELATIVE)")

	fs.StringVar(&cfg.KeyScope, "midi.key-scope",
		getEnv("MIDI_BRIDGE_KEY_SCOPE", ""),
		"Relative state key: label, channel (env: MIDI_BRIDGE_KEY_SCOPE)")

	fs.BoolVar(&cfg.KnobsDisable, "knobs.disable",
		getEnvBool("MIDI_BRIDGE_KNOBS_DISABLE", false),
		"Do not publish knob messages (env: MIDI_BRIDGE_KNOBS_DISABLE)")

	fs.StringVar(&cfg.MappingsFile, "knobs.mappings",
		getEnv("MIDI_BRIDGE_KNOBS_MAPPINGS", ""),
		"YAML knob mapping table replacing the built-in one (env: MIDI_BRIDGE_KNOBS_MAPPINGS)")

	fs.IntVar(&cfg.MonitorLength, "monitor",
		getEnvInt("MIDI_BRIDGE_MONITOR", 0),
		"Monitoring log length (env: MIDI_BRIDGE_MONITOR)")

	fs.StringVar(&cfg.MetricsAddr, "metrics.addr",
		getEnv("MIDI_BRIDGE_METRICS_ADDR", ""),
		"Prometheus listen address, e.g. :9464 (env: MIDI_BRIDGE_METRICS_ADDR)")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, `%s - MIDI to message bus bridge

Usage: %s [options] [port index...]

Options:
`, appName, appName)
		fs.PrintDefaults()
		_, _ = fmt.Fprintf(stderr, `
Examples:
  # List input ports
  %s -list

  # Bridge ports 0 and 2 as relative encoders, no UI
  %s -headless -midi.relative 0 2

Version: %s
`, appName, appName, Version)
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	for _, arg := range fs.Args() {
		idx, err := strconv.Atoi(arg)
		if err != nil || idx < 0 {
			return nil, fmt.Errorf("invalid port index %q", arg)
		}
		cfg.Ports = append(cfg.Ports, idx)
	}

	return cfg, nil
}

// apply copies every value that was set onto cfg.
func (c *CLIConfig) apply(cfg *config.Config) {
	setString(&cfg.Log.Level, c.LogLevel)
	setString(&cfg.Log.Format, c.LogFormat)
	setString(&cfg.Log.File, c.LogFile)
	if c.Headless {
		cfg.UI.Headless = true
	}

	if c.BusDisable {
		cfg.Bus.Disable = true
	}
	setString(&cfg.Bus.URL, c.BusURL)
	setString(&cfg.Bus.Role, c.BusRole)
	setString(&cfg.Bus.ID, c.BusID)
	setString(&cfg.Bus.Username, c.BusUser)
	setString(&cfg.Bus.Password, c.BusPassword)

	if c.Relative {
		cfg.MIDI.Relative = true
	}
	setString(&cfg.MIDI.KeyScope, c.KeyScope)
	if len(c.Ports) > 0 {
		cfg.MIDI.Ports = c.Ports
	}

	if c.KnobsDisable {
		cfg.Knobs.Disable = true
	}
	setString(&cfg.Knobs.MappingsFile, c.MappingsFile)

	if c.MonitorLength > 0 {
		cfg.UI.MonitorLength = c.MonitorLength
	}
	setString(&cfg.Metrics.Addr, c.MetricsAddr)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
