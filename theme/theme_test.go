package theme

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPalette(t *testing.T) {
	p := Default()
	assert.Equal(t, "plasma", p.Name)
	require.Len(t, p.Colors, 8)
	assert.Equal(t, RGB{13, 8, 135}, p.Lookup(0))
	assert.Equal(t, RGB{240, 249, 33}, p.Lookup(1))
}

func TestParseGPLRejectsEmpty(t *testing.T) {
	_, err := ParseGPL(strings.NewReader("GIMP Palette\nName: empty\n"))
	assert.Error(t, err)
}

func TestLookupInterpolates(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {200, 100, 50}}}
	assert.Equal(t, RGB{100, 50, 25}, p.Lookup(0.5))

	single := &Palette{Colors: []RGB{{1, 2, 3}}}
	assert.Equal(t, RGB{1, 2, 3}, single.Lookup(0.5))
}

func TestActivity(t *testing.T) {
	th := New(Default())

	c, sym := th.Activity(200 * time.Millisecond)
	assert.Equal(t, th.Success(), c)
	assert.Equal(t, th.Symbols.PortActive, sym)

	c, sym = th.Activity(3 * time.Second)
	assert.Equal(t, th.Warning(), c)
	assert.Equal(t, th.Symbols.PortIdle, sym)

	_, sym = th.Activity(time.Minute)
	assert.Equal(t, th.Symbols.PortStale, sym)
}
