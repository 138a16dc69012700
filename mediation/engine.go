// Package mediation translates raw controller events into normalized bus
// messages. The Engine owns all session state: the port registry, the
// relative value decoder, per-device knob mappings and the monitor logs.
//
// A single goroutine drives the engine through Run (or Process). Snapshot
// may be called from any goroutine.
package mediation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"midi-bridge/bus"
	"midi-bridge/midi"
)

// ErrEncodeRaw means the raw payload could not be encoded. It points at a
// bug rather than bad input, so the engine stops.
var ErrEncodeRaw = errors.New("raw payload encoding failed")

// IsFatal reports whether err must stop the engine.
func IsFatal(err error) bool {
	return errors.Is(err, ErrEncodeRaw)
}

// Options configure an Engine.
type Options struct {
	Mode          Mode
	KeyScope      KeyScope
	MonitorLength int
	// Mappings is the knob table. Nil disables knob lookup.
	Mappings MappingTable
	// Now is the clock used for port activity; defaults to time.Now.
	Now func() time.Time
}

// Snapshot is a read-only copy of the engine state for presentation.
type Snapshot struct {
	Mode     Mode
	Ports    []PortInfo
	Inbound  []string // newest first
	Outbound []string // newest first
	Knobs    map[int]int
}

type Engine struct {
	log *zap.Logger

	mu       sync.RWMutex // guards state against Snapshot readers
	registry *Registry
	decoder  *Decoder
	monitor  *Monitor
	mappings MappingTable
	knobs    map[int]*Resolver // by port index

	encodeRaw func(string) (bus.Raw, error)
}

func New(logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("mediation")
	return &Engine{
		log:       log,
		registry:  NewRegistry(opts.Now),
		decoder:   NewDecoder(opts.Mode, opts.KeyScope, log.Named("decoder")),
		monitor:   NewMonitor(opts.MonitorLength),
		mappings:  opts.Mappings,
		knobs:     make(map[int]*Resolver),
		encodeRaw: bus.EncodeRaw,
	}
}

// AddPort registers an input port and loads the knob mapping for its name.
func (e *Engine) AddPort(index int, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.RegisterPort(index, name)
	if e.mappings == nil {
		return
	}
	knobs, ok := e.mappings.Lookup(name)
	if !ok {
		e.log.Warn("no knob mapping for device", zap.String("device", name))
		e.knobs[index] = NewResolver(nil)
		return
	}
	e.log.Info("loaded knob mapping", zap.String("device", name), zap.Int("knobs", len(knobs)))
	e.knobs[index] = NewResolver(knobs)
}

// Process translates one event from port into outbound messages, in the
// order they must be published. The only error is a fatal ErrEncodeRaw.
func (e *Engine) Process(port int, ev midi.Event) ([]bus.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	display := ev.String()
	raw, err := e.encodeRaw(display)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeRaw, err)
	}

	e.monitor.Inbound.Push(display)
	out := []bus.Message{raw}

	switch ev.Kind {
	case midi.KindNoteOn:
		out = append(out, bus.NoteOn{Channel: ev.HumanChannel(), Note: ev.Note, Velocity: ev.Velocity})
		e.log.Debug("note on", zap.Uint8("note", ev.Note), zap.Uint8("velocity", ev.Velocity))

	case midi.KindNoteOff:
		out = append(out, bus.NoteOff{Channel: ev.HumanChannel(), Note: ev.Note, Velocity: ev.Velocity})
		e.log.Debug("note off", zap.Uint8("note", ev.Note), zap.Uint8("velocity", ev.Velocity))

	case midi.KindControlChange:
		out = append(out, e.controlChange(port, ev)...)

	case midi.KindOther:
		e.log.Debug("unhandled message", zap.Int("port", port), zap.String("message", display))
	}

	for _, msg := range out {
		e.monitor.Outbound.Push(msg.Summary())
	}
	e.registry.Touch(port)
	return out, nil
}

func (e *Engine) controlChange(port int, ev midi.Event) []bus.Message {
	value := e.decoder.Decode(ev.Channel, ev.Controller, ev.Value)
	channel := ev.HumanChannel()

	out := []bus.Message{bus.ControlChange{Channel: channel, Controller: ev.Controller, Value: value}}

	if knob, ok := e.knobs[port].Resolve(int(channel), ev.Controller, value); ok {
		e.log.Debug("matched knob", zap.Uint8("index", knob.Index), zap.String("controller", ev.Controller.String()))
		out = append(out, knob)
	}
	return out
}

// Run consumes events until in is closed or ctx is done, sending the
// results to out. It returns nil on a clean stop and the error otherwise.
func (e *Engine) Run(ctx context.Context, in <-chan midi.PortEvent, out chan<- bus.Message) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pe, ok := <-in:
			if !ok {
				return nil
			}
			msgs, err := e.Process(pe.Port, pe.Event)
			if err != nil {
				e.log.Error("stopping mediation", zap.Error(err))
				return err
			}
			for _, msg := range msgs {
				select {
				case out <- msg:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Snapshot copies the observable state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	knobs := make(map[int]int, len(e.knobs))
	for port, r := range e.knobs {
		knobs[port] = r.Len()
	}
	return Snapshot{
		Mode:     e.decoder.Mode(),
		Ports:    e.registry.Snapshot(),
		Inbound:  e.monitor.Inbound.Latest(),
		Outbound: e.monitor.Outbound.Latest(),
		Knobs:    knobs,
	}
}
