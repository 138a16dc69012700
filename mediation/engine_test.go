package mediation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"midi-bridge/bus"
	"midi-bridge/midi"
)

func ccEvent(channel uint8, label midi.ControllerLabel, value midi.Value) midi.Event {
	return midi.Event{Kind: midi.KindControlChange, Channel: channel, Controller: label, Value: value}
}

func countTopic(msgs []bus.Message, topic bus.Topic) int {
	n := 0
	for _, m := range msgs {
		if m.Topic() == topic {
			n++
		}
	}
	return n
}

func TestEngineRelativeControlChange(t *testing.T) {
	e := New(nil, Options{Mode: Relative})
	e.AddPort(0, "Encoder Box")

	var values []uint16
	for _, raw := range []int{64, 2, 126} {
		msgs, err := e.Process(0, ccEvent(0, midi.Numbered(70), midi.Low(raw)))
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		cc, ok := msgs[1].(bus.ControlChange)
		require.True(t, ok)
		values = append(values, cc.Value.V)
	}
	assert.Equal(t, []uint16{64, 66, 64}, values)
}

func TestEngineAbsoluteWithoutMapping(t *testing.T) {
	e := New(nil, Options{Mode: Absolute})
	e.AddPort(0, "Keyboard")

	msgs, err := e.Process(0, ccEvent(0, midi.Numbered(7), midi.Low(100)))
	require.NoError(t, err)

	assert.Equal(t, 1, countTopic(msgs, bus.TopicRaw))
	assert.Equal(t, 1, countTopic(msgs, bus.TopicControlChange))
	assert.Equal(t, 0, countTopic(msgs, bus.TopicKnobs))

	cc := msgs[1].(bus.ControlChange)
	assert.Equal(t, uint8(1), cc.Channel)
	assert.True(t, midi.Numbered(7).Equal(cc.Controller))
	assert.Equal(t, midi.Low(100), cc.Value)
}

func TestEngineKnobFromMapping(t *testing.T) {
	table := MappingTable{{Name: "Wheel Box", Knobs: []KnobMapping{{Controller: midi.Special("ModWheel")}}}}
	e := New(nil, Options{Mode: Absolute, Mappings: table})
	e.AddPort(2, "Wheel Box")

	msgs, err := e.Process(2, ccEvent(2, midi.Special("ModWheel"), midi.High(8192)))
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	cc := msgs[1].(bus.ControlChange)
	assert.Equal(t, uint8(3), cc.Channel)
	assert.Equal(t, midi.High(8192), cc.Value)

	knob := msgs[2].(bus.Knob)
	assert.Equal(t, uint8(0), knob.Index)
	assert.InDelta(t, 0.5, knob.Position, 0.001)
}

func TestEngineNoteOn(t *testing.T) {
	e := New(nil, Options{})
	e.AddPort(0, "Keys")

	msgs, err := e.Process(0, midi.Event{Kind: midi.KindNoteOn, Channel: 9, Note: 60, Velocity: 127})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	_, isRaw := msgs[0].(bus.Raw)
	assert.True(t, isRaw)
	assert.Equal(t, bus.NoteOn{Channel: 10, Note: 60, Velocity: 127}, msgs[1])
	assert.Equal(t, 0, countTopic(msgs, bus.TopicControlChange))
	assert.Equal(t, 0, countTopic(msgs, bus.TopicKnobs))
}

func TestEngineNoteOff(t *testing.T) {
	e := New(nil, Options{})
	msgs, err := e.Process(0, midi.Event{Kind: midi.KindNoteOff, Channel: 0, Note: 61, Velocity: 12})
	require.NoError(t, err)
	assert.Equal(t, bus.NoteOff{Channel: 1, Note: 61, Velocity: 12}, msgs[1])
}

func TestEngineOtherEventsOnlyRaw(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	e := New(zap.New(core), Options{})

	msgs, err := e.Process(0, midi.Event{Kind: midi.KindOther, Raw: []byte{0xF8}, Display: "TimingClock"})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.TopicRaw, msgs[0].Topic())
	assert.Equal(t, 1, logs.FilterMessage("unhandled message").Len())
}

func TestEngineMissingMappingWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	table, err := DefaultMappings()
	require.NoError(t, err)

	e := New(zap.New(core), Options{Mappings: table})
	e.AddPort(0, "Unknown Device")
	assert.Equal(t, 1, logs.FilterMessage("no knob mapping for device").Len())

	msgs, err := e.Process(0, ccEvent(0, midi.Numbered(74), midi.Low(1)))
	require.NoError(t, err)
	assert.Equal(t, 0, countTopic(msgs, bus.TopicKnobs))
}

func TestEngineMappingPerPort(t *testing.T) {
	table, err := DefaultMappings()
	require.NoError(t, err)

	e := New(nil, Options{Mappings: table})
	e.AddPort(0, "Arturia BeatStep")
	e.AddPort(1, "Keyboard")

	msgs, err := e.Process(0, ccEvent(0, midi.Numbered(74), midi.Low(127)))
	require.NoError(t, err)
	require.Equal(t, 1, countTopic(msgs, bus.TopicKnobs))
	assert.Equal(t, uint8(1), msgs[2].(bus.Knob).Index)

	msgs, err = e.Process(1, ccEvent(0, midi.Numbered(74), midi.Low(127)))
	require.NoError(t, err)
	assert.Equal(t, 0, countTopic(msgs, bus.TopicKnobs))

	snap := e.Snapshot()
	assert.Equal(t, 16, snap.Knobs[0])
	assert.Equal(t, 0, snap.Knobs[1])
}

func TestEngineMonitorAndRegistry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	e := New(nil, Options{MonitorLength: 4, Now: func() time.Time { return now }})
	e.AddPort(0, "Keys")

	now = now.Add(time.Second)
	_, err := e.Process(0, midi.Event{Kind: midi.KindNoteOn, Note: 1, Velocity: 1, Display: "first"})
	require.NoError(t, err)
	_, err = e.Process(7, midi.Event{Kind: midi.KindOther, Display: "stray"})
	require.NoError(t, err)

	snap := e.Snapshot()
	assert.Equal(t, []string{"stray", "first"}, snap.Inbound)
	assert.Len(t, snap.Outbound, 3)
	assert.Equal(t, "NoteOn { channel: 1, note: 1, velocity: 1 }", snap.Outbound[1])

	require.Len(t, snap.Ports, 1, "events from unregistered ports do not register them")
	assert.Equal(t, now, snap.Ports[0].LastReceivedAt)

	for i := 0; i < 10; i++ {
		_, err = e.Process(0, midi.Event{Kind: midi.KindOther})
		require.NoError(t, err)
	}
	snap = e.Snapshot()
	assert.Len(t, snap.Inbound, 4)
	assert.Len(t, snap.Outbound, 4)
}

func TestEngineRawEncodingIsFatal(t *testing.T) {
	e := New(nil, Options{})
	e.encodeRaw = func(string) (bus.Raw, error) { return bus.Raw{}, errors.New("broken encoder") }

	_, err := e.Process(0, midi.Event{Kind: midi.KindNoteOn})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Empty(t, e.Snapshot().Inbound, "a failed pass leaves no trace")

	in := make(chan midi.PortEvent, 1)
	in <- midi.PortEvent{Event: midi.Event{Kind: midi.KindNoteOn}}
	out := make(chan bus.Message, 4)
	err = e.Run(context.Background(), in, out)
	assert.ErrorIs(t, err, ErrEncodeRaw)
}

func TestEngineRun(t *testing.T) {
	e := New(nil, Options{})
	e.AddPort(0, "Keys")

	in := make(chan midi.PortEvent, 2)
	out := make(chan bus.Message, 8)
	in <- midi.PortEvent{Port: 0, Event: midi.Event{Kind: midi.KindNoteOn, Channel: 0, Note: 60, Velocity: 90}}
	in <- midi.PortEvent{Port: 0, Event: midi.Event{Kind: midi.KindNoteOff, Channel: 0, Note: 60}}
	close(in)

	require.NoError(t, e.Run(context.Background(), in, out))
	close(out)

	var topics []bus.Topic
	for msg := range out {
		topics = append(topics, msg.Topic())
	}
	assert.Equal(t, []bus.Topic{bus.TopicRaw, bus.TopicNotesOn, bus.TopicRaw, bus.TopicNotesOff}, topics)
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e := New(nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx, make(chan midi.PortEvent), make(chan bus.Message))
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
