package mediation

// DefaultMonitorLength is the number of summaries kept per log.
const DefaultMonitorLength = 16

// Ring is a fixed-capacity sequence that silently evicts its oldest entry.
type Ring[T any] struct {
	items []T
	head  int // next write position
	size  int
}

// NewRing creates a ring holding at most capacity items (minimum 1).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Push appends item, evicting the oldest entry when full.
func (r *Ring[T]) Push(item T) {
	r.items[r.head] = item
	r.head = (r.head + 1) % len(r.items)
	if r.size < len(r.items) {
		r.size++
	}
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.items) }

// Entries returns a copy, oldest first.
func (r *Ring[T]) Entries() []T {
	out := make([]T, 0, r.size)
	start := (r.head - r.size + len(r.items)) % len(r.items)
	for i := 0; i < r.size; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

// Latest returns a copy, newest first.
func (r *Ring[T]) Latest() []T {
	out := r.Entries()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Monitor keeps the inbound and outbound message summaries.
type Monitor struct {
	Inbound  *Ring[string]
	Outbound *Ring[string]
}

func NewMonitor(length int) *Monitor {
	if length <= 0 {
		length = DefaultMonitorLength
	}
	return &Monitor{
		Inbound:  NewRing[string](length),
		Outbound: NewRing[string](length),
	}
}
