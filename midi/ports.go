package midi

import (
	"errors"
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

var (
	ErrPortsTimeout = errors.New("timed out listing MIDI ports")
	ErrNoSuchPort   = errors.New("no such MIDI input port")
	ErrNoPorts      = errors.New("no MIDI input ports available")
)

// ScanTimeout bounds how long port enumeration may take. CoreMIDI can hang.
var ScanTimeout = 3 * time.Second

// PortInfo describes one input port as seen by the driver.
type PortInfo struct {
	Index int
	Name  string
}

// Sink receives events from port listeners. Push must not block.
type Sink interface {
	Push(PortEvent)
}

// InPorts lists the available input ports.
func InPorts() ([]drivers.In, error) {
	ch := make(chan []drivers.In, 1)
	go func() {
		ch <- gomidi.GetInPorts()
	}()

	select {
	case ins := <-ch:
		return ins, nil
	case <-time.After(ScanTimeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrPortsTimeout
	}
}

// Describe returns index and name for each port.
func Describe(ins []drivers.In) []PortInfo {
	infos := make([]PortInfo, 0, len(ins))
	for i, in := range ins {
		infos = append(infos, PortInfo{Index: i, Name: in.String()})
	}
	return infos
}

// SelectPorts resolves the requested indices against the available ports.
// With no request and a single port available, that port is chosen.
func SelectPorts(ins []drivers.In, requested []int) ([]PortInfo, error) {
	if len(ins) == 0 {
		return nil, ErrNoPorts
	}
	if len(requested) == 0 {
		if len(ins) == 1 {
			return []PortInfo{{Index: 0, Name: ins[0].String()}}, nil
		}
		return nil, fmt.Errorf("%d input ports available, choose one or more by index", len(ins))
	}

	selected := make([]PortInfo, 0, len(requested))
	seen := make(map[int]bool, len(requested))
	for _, idx := range requested {
		if idx < 0 || idx >= len(ins) {
			return nil, fmt.Errorf("port %d: %w", idx, ErrNoSuchPort)
		}
		if seen[idx] {
			continue
		}
		seen[idx] = true
		selected = append(selected, PortInfo{Index: idx, Name: ins[idx].String()})
	}
	return selected, nil
}

// Listen opens an input port and pushes every parsed message into sink,
// tagged with index. The returned function stops listening.
func Listen(index int, in drivers.In, sink Sink) (stop func(), err error) {
	parser := NewParser()
	stop, err = gomidi.ListenTo(in, func(msg gomidi.Message, timestampms int32) {
		sink.Push(PortEvent{Port: index, Event: parser.Parse(msg)})
	}, gomidi.UseSysEx())
	if err != nil {
		return nil, fmt.Errorf("open input %q: %w", in.String(), err)
	}
	return stop, nil
}
