package theme

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	PortActive rune // ● event within the last second
	PortIdle   rune // ◐ quiet for a while
	PortStale  rune // ○ nothing for a long time
	Inbound    rune // ← received from a port
	Outbound   rune // → published on the bus
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			PortActive: '●',
			PortIdle:   '◐',
			PortStale:  '○',
			Inbound:    '←',
			Outbound:   '→',
		},
	}
}

// Color roles mapped to palette positions (0-1)
const (
	RoleMuted   = 0.15 // deep purple
	RoleFG      = 0.55 // pink (readable)
	RoleAccent  = 0.4  // magenta
	RoleWarning = 0.7  // orange
	RoleSuccess = 1.0  // bright yellow
)

// Port activity thresholds
const (
	ActiveWithin = time.Second
	IdleWithin   = 5 * time.Second
)

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Activity picks colour and symbol for a port last heard from elapsed ago.
func (t *Theme) Activity(elapsed time.Duration) (lipgloss.Color, rune) {
	switch {
	case elapsed <= ActiveWithin:
		return t.Success(), t.Symbols.PortActive
	case elapsed <= IdleWithin:
		return t.Warning(), t.Symbols.PortIdle
	default:
		return t.Muted(), t.Symbols.PortStale
	}
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
