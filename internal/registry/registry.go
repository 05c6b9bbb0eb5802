// Package registry maps pairing identifiers to the broadcast channels of
// the two connection roles. Slots are reference-counted by their live
// subscribers: the last unsubscribe of a role removes that role's slot,
// and an identifier whose slots are both gone is removed entirely.
package registry

import (
	"sync"

	"github.com/openvibe/pairrelay/internal/bus"
)

// Role identifies which side of a pairing a connection is on. Routing
// always targets the opposite role.
type Role int

const (
	// RoleDevice is the hardware side. Devices attach on /register.
	RoleDevice Role = iota
	// RoleMobile is the controller side. Mobiles attach on /pair.
	RoleMobile

	roleCount
)

// String returns the role name used in logs and metric labels.
func (r Role) String() string {
	switch r {
	case RoleDevice:
		return "device"
	case RoleMobile:
		return "mobile"
	default:
		return "unknown"
	}
}

// Opposite returns the role messages from r are routed to.
func (r Role) Opposite() Role {
	if r == RoleDevice {
		return RoleMobile
	}
	return RoleDevice
}

// entry holds the pair of optional role slots for one identifier. A nil
// element means no connection of that role is currently attached.
type entry struct {
	slots [roleCount]*bus.Channel
}

func (e *entry) empty() bool {
	return e.slots[RoleDevice] == nil && e.slots[RoleMobile] == nil
}

// Registry is the shared identifier-to-entry map, used concurrently by
// every live connection handler. Subscribe and Unsubscribe take the write
// lock; Publish and the size accessors only read.
type Registry struct {
	backlog int

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates an empty registry whose channels buffer backlog messages per
// subscriber. A non-positive backlog falls back to bus.DefaultBacklog.
func New(backlog int) *Registry {
	return &Registry{
		backlog: backlog,
		entries: make(map[string]*entry),
	}
}

// Subscribe attaches a new subscriber for (id, role), creating the entry
// and the role's channel when this is the first one, and returns the
// fresh receiving handle.
func (r *Registry) Subscribe(id string, role Role) *bus.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil {
		e = &entry{}
		r.entries[id] = e
	}
	ch := e.slots[role]
	if ch == nil {
		ch = bus.New(r.backlog)
		e.slots[role] = ch
	}
	return ch.Subscribe()
}

// Unsubscribe detaches sub from (id, role). The last subscriber of a role
// removes the slot; when both slots are gone the entry is deleted.
// Unsubscribing a vacant slot or an unknown identifier is a no-op.
func (r *Registry) Unsubscribe(id string, role Role, sub *bus.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.entries[id]
	if e == nil {
		return
	}
	ch := e.slots[role]
	if ch == nil {
		return
	}
	ch.Unsubscribe(sub)
	if ch.Subscribers() == 0 {
		e.slots[role] = nil
	}
	if e.empty() {
		delete(r.entries, id)
	}
}

// Publish routes msg to the role opposite from. It reports whether a
// destination slot existed and how many buffered messages slow consumers
// lost to make room. A missing destination is the expected idle state
// (for example a device connected before any mobile), not an error.
func (r *Registry) Publish(id string, from Role, msg string) (delivered bool, dropped int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entries[id]
	if e == nil {
		return false, 0
	}
	ch := e.slots[from.Opposite()]
	if ch == nil {
		return false, 0
	}
	return true, ch.Publish(msg)
}

// Len reports the number of live identifier entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Subscribers reports the live subscriber count for (id, role), zero when
// the slot or identifier is absent.
func (r *Registry) Subscribers(id string, role Role) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entries[id]
	if e == nil || e.slots[role] == nil {
		return 0
	}
	return e.slots[role].Subscribers()
}
