package midi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReportsChanges(t *testing.T) {
	w := NewWatcher([]string{"Arturia BeatStep", "nanoKONTROL2 SLIDER/KNOB"})

	current := []string{"Arturia BeatStep"}
	var listErr error
	w.list = func() ([]string, error) { return current, listErr }

	w.scan()
	require.Len(t, w.events, 1)
	assert.Equal(t, PortChange{Type: PortDisconnected, Name: "nanoKONTROL2 SLIDER/KNOB"}, <-w.events)

	// no change, no event
	w.scan()
	assert.Empty(t, w.events)

	// a failed scan leaves state alone
	listErr = errors.New("hung")
	current = nil
	w.scan()
	assert.Empty(t, w.events)

	listErr = nil
	current = []string{"Arturia BeatStep", "nanoKONTROL2 SLIDER/KNOB", "Other"}
	w.scan()
	require.Len(t, w.events, 1)
	assert.Equal(t, PortChange{Type: PortConnected, Name: "nanoKONTROL2 SLIDER/KNOB"}, <-w.events)
}
