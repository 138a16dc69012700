package midi

import (
	"fmt"
	"strconv"
)

// Kind discriminates the events the mediation engine knows how to translate.
type Kind int

const (
	KindOther Kind = iota
	KindNoteOn
	KindNoteOff
	KindControlChange
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "NoteOn"
	case KindNoteOff:
		return "NoteOff"
	case KindControlChange:
		return "ControlChange"
	default:
		return "Other"
	}
}

// Event is one decoded message from an input port.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind    Kind
	Channel uint8 // wire channel, 0-15

	// NoteOn / NoteOff
	Note     uint8
	Velocity uint8

	// ControlChange
	Controller ControllerLabel
	Value      Value

	Raw     []byte
	Display string // human readable form of the original message
}

// PortEvent tags an event with the index of the port it arrived on.
type PortEvent struct {
	Port  int
	Event Event
}

// HumanChannel returns the 1-based channel used on the bus.
func (e Event) HumanChannel() uint8 {
	return e.Channel + 1
}

func (e Event) String() string {
	if e.Display != "" {
		return e.Display
	}
	switch e.Kind {
	case KindNoteOn, KindNoteOff:
		return fmt.Sprintf("%s channel: %d key: %d velocity: %d", e.Kind, e.Channel, e.Note, e.Velocity)
	case KindControlChange:
		return fmt.Sprintf("ControlChange channel: %d controller: %s value: %s", e.Channel, e.Controller, e.Value)
	default:
		return fmt.Sprintf("% X", e.Raw)
	}
}

// LabelTag tells numbered and named controllers apart.
type LabelTag uint8

const (
	TagNone LabelTag = iota
	TagNumbered
	TagSpecial
)

// ControllerLabel identifies a controller either by number (generic 7-bit
// controllers) or by name (well known, usually 14-bit, controllers).
type ControllerLabel struct {
	Tag    LabelTag
	Number uint8
	Name   string
}

func Numbered(n uint8) ControllerLabel {
	if n > 127 {
		n = 127
	}
	return ControllerLabel{Tag: TagNumbered, Number: n}
}

func Special(name string) ControllerLabel {
	return ControllerLabel{Tag: TagSpecial, Name: name}
}

// Equal compares tag and value. Names compare case-sensitively.
func (l ControllerLabel) Equal(o ControllerLabel) bool {
	if l.Tag != o.Tag {
		return false
	}
	switch l.Tag {
	case TagNumbered:
		return l.Number == o.Number
	case TagSpecial:
		return l.Name == o.Name
	default:
		return true
	}
}

// String is the bare label: the number for numbered controllers and the name
// for special ones. It doubles as the decoder state key.
func (l ControllerLabel) String() string {
	switch l.Tag {
	case TagNumbered:
		return strconv.Itoa(int(l.Number))
	case TagSpecial:
		return l.Name
	default:
		return ""
	}
}

// GoString renders the tagged form, e.g. Numbered(7) or Special("Pan").
func (l ControllerLabel) GoString() string {
	switch l.Tag {
	case TagNumbered:
		return fmt.Sprintf("Numbered(%d)", l.Number)
	case TagSpecial:
		return fmt.Sprintf("Special(%q)", l.Name)
	default:
		return "None"
	}
}

// Resolution of a controller value.
type Resolution uint8

const (
	LowRes  Resolution = iota + 1 // 7-bit
	HighRes                       // 14-bit
)

const (
	MaxLowRes  = 127
	MaxHighRes = 16383
)

func (r Resolution) String() string {
	switch r {
	case LowRes:
		return "LowRes"
	case HighRes:
		return "HighRes"
	default:
		return "Unknown"
	}
}

// Value is a controller value tagged with its resolution.
// Constructors clamp to the valid range.
type Value struct {
	Res Resolution
	V   uint16
}

func Low(v int) Value {
	return Value{Res: LowRes, V: uint16(clamp(v, 0, MaxLowRes))}
}

func High(v int) Value {
	return Value{Res: HighRes, V: uint16(clamp(v, 0, MaxHighRes))}
}

// Max is the largest value reachable at this resolution.
func (v Value) Max() uint16 {
	if v.Res == HighRes {
		return MaxHighRes
	}
	return MaxLowRes
}

// Normalized maps the value onto 0.0..1.0.
func (v Value) Normalized() float64 {
	return float64(v.V) / float64(v.Max())
}

func (v Value) String() string {
	return fmt.Sprintf("%s(%d)", v.Res, v.V)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
