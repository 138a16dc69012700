package mediation

import (
	"sort"
	"time"
)

// PortInfo describes a registered input port.
type PortInfo struct {
	Index          int
	Name           string
	LastReceivedAt time.Time
}

// Registry tracks registered ports and when each last produced an event.
// It has no influence on translation.
type Registry struct {
	ports map[int]*PortInfo
	now   func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{ports: make(map[int]*PortInfo), now: now}
}

// RegisterPort creates or overwrites the entry for index.
func (r *Registry) RegisterPort(index int, name string) {
	r.ports[index] = &PortInfo{Index: index, Name: name, LastReceivedAt: r.now()}
}

// Touch records activity on a registered port. Unknown ports are ignored.
func (r *Registry) Touch(index int) {
	info, ok := r.ports[index]
	if !ok {
		return
	}
	if now := r.now(); now.After(info.LastReceivedAt) {
		info.LastReceivedAt = now
	}
}

// Lookup returns a copy of the entry for index.
func (r *Registry) Lookup(index int) (PortInfo, bool) {
	info, ok := r.ports[index]
	if !ok {
		return PortInfo{}, false
	}
	return *info, true
}

// Snapshot returns copies of all entries ordered by index.
func (r *Registry) Snapshot() []PortInfo {
	out := make([]PortInfo, 0, len(r.ports))
	for _, info := range r.ports {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
