// Package bus carries normalized messages from the mediation engine onto the
// pub/sub bus.
package bus

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"midi-bridge/midi"
)

// Topic is the plug name a message is published under.
type Topic string

const (
	TopicRaw           Topic = "raw"
	TopicNotesOn       Topic = "notesOn"
	TopicNotesOff      Topic = "notesOff"
	TopicControlChange Topic = "controlChange"
	TopicKnobs         Topic = "knobs"
)

// Topics lists every topic in a stable order.
var Topics = []Topic{TopicRaw, TopicNotesOn, TopicNotesOff, TopicControlChange, TopicKnobs}

// QoS is the delivery hint attached to each topic.
type QoS int

const (
	BestEffort QoS = iota
	AtLeastOnce
)

func (q QoS) String() string {
	if q == AtLeastOnce {
		return "at-least-once"
	}
	return "best-effort"
}

// Message is one of Raw, NoteOn, NoteOff, ControlChange or Knob.
type Message interface {
	Topic() Topic
	QoS() QoS
	// Payload is the encoded body published on the bus.
	Payload() ([]byte, error)
	// Summary is the one-line form shown in the monitor log.
	Summary() string

	message()
}

// Raw wraps an already encoded payload.
type Raw struct {
	Data []byte
}

// EncodeRaw encodes the display form of an inbound event.
func EncodeRaw(display string) (Raw, error) {
	data, err := msgpack.Marshal(display)
	if err != nil {
		return Raw{}, fmt.Errorf("encode raw payload: %w", err)
	}
	return Raw{Data: data}, nil
}

func (Raw) Topic() Topic { return TopicRaw }
func (Raw) QoS() QoS { return BestEffort }
func (r Raw) Payload() ([]byte, error) { return r.Data, nil }
func (r Raw) Summary() string { return fmt.Sprintf("Raw(%d bytes)", len(r.Data)) }
func (Raw) message() {}

type NoteOn struct {
	Channel  uint8 `msgpack:"channel"`
	Note     uint8 `msgpack:"note"`
	Velocity uint8 `msgpack:"velocity"`
}

func (NoteOn) Topic() Topic { return TopicNotesOn }
func (NoteOn) QoS() QoS { return AtLeastOnce }
func (n NoteOn) Payload() ([]byte, error) { return msgpack.Marshal(n) }
func (n NoteOn) Summary() string { return noteSummary("NoteOn", n.Channel, n.Note, n.Velocity) }
func (NoteOn) message() {}

type NoteOff struct {
	Channel  uint8 `msgpack:"channel"`
	Note     uint8 `msgpack:"note"`
	Velocity uint8 `msgpack:"velocity"`
}

func (NoteOff) Topic() Topic { return TopicNotesOff }
func (NoteOff) QoS() QoS { return AtLeastOnce }
func (n NoteOff) Payload() ([]byte, error) { return msgpack.Marshal(n) }
func (n NoteOff) Summary() string { return noteSummary("NoteOff", n.Channel, n.Note, n.Velocity) }
func (NoteOff) message() {}

func noteSummary(kind string, channel, note, velocity uint8) string {
	return fmt.Sprintf("%s { channel: %d, note: %d, velocity: %d }", kind, channel, note, velocity)
}

type ControlChange struct {
	Channel    uint8
	Controller midi.ControllerLabel
	Value      midi.Value
}

func (ControlChange) Topic() Topic { return TopicControlChange }
func (ControlChange) QoS() QoS { return BestEffort }

// Payload encodes the labels as externally tagged maps, e.g.
// {"channel":1,"controller":{"Numbered":7},"value":{"LowRes":100}}.
func (c ControlChange) Payload() ([]byte, error) {
	return msgpack.Marshal(map[string]any{
		"channel":    c.Channel,
		"controller": labelPayload(c.Controller),
		"value":      valuePayload(c.Value),
	})
}

func (c ControlChange) Summary() string {
	return fmt.Sprintf("ControlChange { channel: %d, controller: %#v, value: %s }", c.Channel, c.Controller, c.Value)
}

func (ControlChange) message() {}

type Knob struct {
	Index    uint8   `msgpack:"index"`
	Position float32 `msgpack:"position"`
}

func (Knob) Topic() Topic { return TopicKnobs }
func (Knob) QoS() QoS { return BestEffort }
func (k Knob) Payload() ([]byte, error) { return msgpack.Marshal(k) }
func (k Knob) Summary() string { return fmt.Sprintf("Knob { index: %d, position: %.3f }", k.Index, k.Position) }
func (Knob) message() {}

func labelPayload(l midi.ControllerLabel) map[string]any {
	switch l.Tag {
	case midi.TagNumbered:
		return map[string]any{"Numbered": l.Number}
	case midi.TagSpecial:
		return map[string]any{"Special": l.Name}
	default:
		return nil
	}
}

func valuePayload(v midi.Value) map[string]any {
	if v.Res == midi.HighRes {
		return map[string]any{"HighRes": v.V}
	}
	return map[string]any{"LowRes": uint8(v.V)}
}
