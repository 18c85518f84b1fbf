// Package bridge implements the bridge dispatcher: the interface
// registry, the bounded capture queue, the background sender task and
// the datagram transport that relays captured packets to an external
// capture endpoint.
package bridge

import (
	"sort"
	"sync"

	"icc.tech/pktbridge/internal/core"
)

// entry is one registered interface. Counters are written only by the
// sender task after a successful send; the enabled flag is written by
// administrative calls. All access goes through the registry lock.
type entry struct {
	id            uint32
	enabled       bool
	packetsSentRX uint64
	bytesSentRX   uint64
	packetsSentTX uint64
	bytesSentTX   uint64
}

// Registry maps interface identifiers to capture state and counters.
// Entries are never removed while the process runs; a disabled entry
// is inert but keeps its counters.
type Registry struct {
	mu      sync.RWMutex
	entries map[uint32]*entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uint32]*entry)}
}

// GetOrCreate returns the entry for id, inserting a zero-initialised
// one if absent. Idempotent.
func (r *Registry) GetOrCreate(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		r.entries[id] = &entry{id: id}
	}
}

// SetEnabled flips the enabled flag for id, creating the entry if
// needed when enabling. Disabling an unknown interface is a no-op.
func (r *Registry) SetEnabled(id uint32, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		if !enabled {
			return
		}
		e = &entry{id: id}
		r.entries[id] = e
	}
	e.enabled = enabled
}

// Enabled reports whether id is registered and enabled. This is the
// fast-path check; one map lookup under a read lock.
func (r *Registry) Enabled(id uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && e.enabled
}

// AnyEnabled reports whether at least one interface is enabled.
func (r *Registry) AnyEnabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.enabled {
			return true
		}
	}
	return false
}

// AddSent credits a successfully relayed record to id's counters.
// Called only by the sender task.
func (r *Registry) AddSent(id uint32, dir core.Direction, bytes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return
	}
	if dir == core.DirectionTX {
		e.packetsSentTX++
		e.bytesSentTX += bytes
	} else {
		e.packetsSentRX++
		e.bytesSentRX += bytes
	}
}

// Snapshot returns copies of one entry (filter non-nil) or all entries
// sorted by interface id. The result shares no state with the registry.
func (r *Registry) Snapshot(filter *uint32) []core.InterfaceStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []core.InterfaceStats
	if filter != nil {
		if e, ok := r.entries[*filter]; ok {
			out = append(out, statsOf(e))
		}
		return out
	}
	out = make([]core.InterfaceStats, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, statsOf(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InterfaceID < out[j].InterfaceID })
	return out
}

func statsOf(e *entry) core.InterfaceStats {
	return core.InterfaceStats{
		InterfaceID:   e.id,
		Enabled:       e.enabled,
		PacketsSentRX: e.packetsSentRX,
		BytesSentRX:   e.bytesSentRX,
		PacketsSentTX: e.packetsSentTX,
		BytesSentTX:   e.bytesSentTX,
	}
}
