package midi

import (
	"context"
	"sync"
	"time"
)

// PortChange is emitted when a watched input port disappears or returns.
type PortChange struct {
	Type PortChangeType
	Name string
}

type PortChangeType int

const (
	PortConnected PortChangeType = iota
	PortDisconnected
)

func (t PortChangeType) String() string {
	if t == PortDisconnected {
		return "disconnected"
	}
	return "connected"
}

// Watcher polls the driver and reports changes for a fixed set of port names.
type Watcher struct {
	mu       sync.Mutex
	present  map[string]bool
	events   chan PortChange
	pollRate time.Duration
	list     func() ([]string, error)
}

// NewWatcher watches the named ports, which are assumed present at start.
func NewWatcher(names []string) *Watcher {
	present := make(map[string]bool, len(names))
	for _, n := range names {
		present[n] = true
	}
	return &Watcher{
		present:  present,
		events:   make(chan PortChange, 16),
		pollRate: time.Second,
		list:     portNames,
	}
}

// Events returns a channel of port changes. It is closed when Run returns.
func (w *Watcher) Events() <-chan PortChange {
	return w.events
}

// Run starts the polling loop (blocking - run in goroutine)
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollRate)
	defer ticker.Stop()
	defer close(w.events)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *Watcher) scan() {
	names, err := w.list()
	if err != nil {
		// CoreMIDI is hung - skip this scan
		return
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}

	var changes []PortChange
	w.mu.Lock()
	for name, was := range w.present {
		now := seen[name]
		if now == was {
			continue
		}
		w.present[name] = now
		change := PortChange{Type: PortConnected, Name: name}
		if !now {
			change.Type = PortDisconnected
		}
		changes = append(changes, change)
	}
	w.mu.Unlock()

	for _, c := range changes {
		select {
		case w.events <- c:
		default:
		}
	}
}

func portNames() ([]string, error) {
	ins, err := InPorts()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}
