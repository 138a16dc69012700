package mediation

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"midi-bridge/midi"
)

// Mode selects how controller values are interpreted.
type Mode int

const (
	Absolute Mode = iota
	Relative
)

func (m Mode) String() string {
	if m == Relative {
		return "relative"
	}
	return "absolute"
}

// ParseMode accepts "absolute" or "relative".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "absolute", "abs":
		return Absolute, nil
	case "relative", "rel":
		return Relative, nil
	}
	return Absolute, fmt.Errorf("unknown controller mode %q", s)
}

// KeyScope decides which controller updates share remembered state.
type KeyScope int

const (
	// KeyScopeLabel keys state by label only, so the same controller on
	// different channels shares one value.
	KeyScopeLabel KeyScope = iota
	// KeyScopeChannel keys state by channel and label.
	KeyScopeChannel
)

func (s KeyScope) String() string {
	if s == KeyScopeChannel {
		return "channel"
	}
	return "label"
}

func ParseKeyScope(s string) (KeyScope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "label":
		return KeyScopeLabel, nil
	case "channel":
		return KeyScopeChannel, nil
	}
	return KeyScopeLabel, fmt.Errorf("unknown key scope %q", s)
}

// ControllerKey indexes decoder state.
type ControllerKey string

// Key derives the state key for a controller on a wire channel.
func (s KeyScope) Key(channel uint8, label midi.ControllerLabel) ControllerKey {
	if s == KeyScopeChannel {
		return ControllerKey(fmt.Sprintf("%d/%s", channel, label))
	}
	return ControllerKey(label.String())
}

// Decoder turns relative controller updates into absolute values. It keeps
// the last absolute value per controller for the life of the session.
type Decoder struct {
	mode   Mode
	scope  KeyScope
	log    *zap.Logger
	known  map[ControllerKey]midi.Value
	warned map[ControllerKey]bool
}

func NewDecoder(mode Mode, scope KeyScope, logger *zap.Logger) *Decoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{
		mode:   mode,
		scope:  scope,
		log:    logger,
		known:  make(map[ControllerKey]midi.Value),
		warned: make(map[ControllerKey]bool),
	}
}

func (d *Decoder) Mode() Mode { return d.mode }

// Decode returns the absolute value to publish for an update.
func (d *Decoder) Decode(channel uint8, label midi.ControllerLabel, value midi.Value) midi.Value {
	if d.mode == Absolute {
		return value
	}
	key := d.scope.Key(channel, label)

	if value.Res == midi.HighRes {
		if !d.warned[key] {
			d.warned[key] = true
			d.log.Warn("relative mode ignored for high resolution controller, sending as-is",
				zap.String("controller", string(key)))
		}
		return value
	}

	prev, ok := d.known[key]
	if !ok {
		// First touch: treat the raw value as absolute.
		d.known[key] = value
		return value
	}
	next := midi.Low(int(prev.V) + Increment(uint8(value.V)))
	d.known[key] = next
	return next
}

// Last returns the remembered value for a key.
func (d *Decoder) Last(key ControllerKey) (midi.Value, bool) {
	v, ok := d.known[key]
	return v, ok
}

// Increment reads a 7-bit value as two's complement: 0..63 are positive,
// 64..127 are value-128.
func Increment(v uint8) int {
	v &= 0x7f
	if v < 64 {
		return int(v)
	}
	return int(v) - 128
}
