// Package debug builds the process logger.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select level, encoding and destination.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	// File receives the log instead of stderr when set. The TUI owns the
	// terminal, so it always logs to a file.
	File string
}

// ParseLevel accepts the usual level names.
func ParseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// LogPath returns the default log file, ~/.config/midi-bridge/debug.log.
func LogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midi-bridge", "debug.log"), nil
}

// New builds a logger. The returned function flushes and closes it.
func New(opts Options) (*zap.Logger, func(), error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "console", "text":
		enc = zapcore.NewConsoleEncoder(encCfg)
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	out := zapcore.Lock(os.Stderr)
	closeFile := func() {}
	if opts.File != "" {
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return nil, nil, err
		}
		out = zapcore.Lock(f)
		closeFile = func() { _ = f.Close() }
	}

	logger := zap.New(zapcore.NewCore(enc, out, level), zap.AddCaller())
	return logger, func() {
		_ = logger.Sync()
		closeFile()
	}, nil
}
