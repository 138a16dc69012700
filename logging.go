package main

import (
	"os"

	"go.uber.org/zap"

	"midi-bridge/config"
	"midi-bridge/debug"
)

// setupLogger builds the process logger. With the UI running the terminal
// belongs to bubbletea, so logs go to a file.
func setupLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	file := cfg.Log.File
	if file == "" && !cfg.UI.Headless {
		path, err := debug.LogPath()
		if err != nil {
			return nil, nil, err
		}
		file = path
	}

	logger, closeLog, err := debug.New(debug.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   file,
	})
	if err != nil {
		return nil, nil, err
	}

	return logger.With(
		zap.String("service", appName),
		zap.String("version", Version),
		zap.Int("pid", os.Getpid()),
	), closeLog, nil
}
