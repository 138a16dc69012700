package debug

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	logger, closeLog, err := New(Options{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.Debug("hello from test")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, _, err := New(Options{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, _, err = New(Options{Level: "nope"})
	assert.Error(t, err)
}
