package midi

import (
	"fmt"

	gomidi "gitlab.com/gomidi/midi/v2"
)

// Named 14-bit controllers (MSB numbers; the LSB lives at number+32).
var namedControllers = map[uint8]string{
	1:  "ModWheel",
	2:  "Breath",
	4:  "Foot",
	5:  "Portamento",
	6:  "DataEntry",
	7:  "Volume",
	8:  "Balance",
	10: "Pan",
	11: "Expression",
	12: "Effect1",
	13: "Effect2",
	16: "GeneralPurpose1",
	17: "GeneralPurpose2",
	18: "GeneralPurpose3",
	19: "GeneralPurpose4",
}

const (
	lsbOffset    = 32
	firstLowRes  = 64
	lastLowRes   = 119
	bankSelect   = 0
	bankSelectLS = 32
)

// highResLabel returns the label for a 14-bit controller MSB number.
func highResLabel(msb uint8) (ControllerLabel, bool) {
	if msb == bankSelect || msb >= lsbOffset {
		return ControllerLabel{}, false
	}
	if name, ok := namedControllers[msb]; ok {
		return Special(name), true
	}
	return Special(fmt.Sprintf("UndefinedHighRes-%d-%d", msb, msb+lsbOffset)), true
}

// Parser turns wire messages into Events. It remembers the most recent MSB
// and LSB of every 14-bit controller pair per channel, so one Parser must be
// used per input port.
type Parser struct {
	msb     [16][lsbOffset]uint8
	lsb     [16][lsbOffset]uint8
	seenMSB [16][lsbOffset]bool
}

func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes msg. Anything that is not a note or a recognized controller
// comes back as KindOther with Raw and Display set.
func (p *Parser) Parse(msg gomidi.Message) Event {
	ev := Event{
		Kind:    KindOther,
		Raw:     append([]byte(nil), msg.Bytes()...),
		Display: msg.String(),
	}

	var channel, a, b uint8
	switch {
	case msg.GetNoteOn(&channel, &a, &b):
		ev.Channel, ev.Note, ev.Velocity = channel, a, b
		ev.Kind = KindNoteOn
		if b == 0 {
			ev.Kind = KindNoteOff
		}
	case msg.GetNoteOff(&channel, &a, &b):
		ev.Channel, ev.Note, ev.Velocity = channel, a, b
		ev.Kind = KindNoteOff
	case msg.GetControlChange(&channel, &a, &b):
		ev.Channel = channel
		if label, value, ok := p.controlChange(channel&0x0f, a, b); ok {
			ev.Kind = KindControlChange
			ev.Controller = label
			ev.Value = value
		}
	}
	return ev
}

func (p *Parser) controlChange(channel, controller, value uint8) (ControllerLabel, Value, bool) {
	switch {
	case controller >= firstLowRes && controller <= lastLowRes:
		return Numbered(controller), Low(int(value)), true

	case controller > bankSelectLS && controller < firstLowRes:
		msb := controller - lsbOffset
		p.lsb[channel][msb] = value
		if !p.seenMSB[channel][msb] {
			return ControllerLabel{}, Value{}, false
		}
		label, ok := highResLabel(msb)
		return label, p.combined(channel, msb), ok

	case controller > bankSelect && controller < lsbOffset:
		// A new MSB starts a new value; a following LSB refines it.
		p.msb[channel][controller] = value
		p.lsb[channel][controller] = 0
		p.seenMSB[channel][controller] = true
		label, ok := highResLabel(controller)
		return label, p.combined(channel, controller), ok
	}
	return ControllerLabel{}, Value{}, false
}

func (p *Parser) combined(channel, msb uint8) Value {
	return High(int(p.msb[channel][msb])<<7 | int(p.lsb[channel][msb]))
}
