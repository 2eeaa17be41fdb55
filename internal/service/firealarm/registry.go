package firealarm

import (
	"errors"
	"net/netip"
	"slices"
)

// ErrRegistryFull is returned when a new door does not fit.
var ErrRegistryFull = errors.New("door registry full")

// Registry is the bounded, deduplicated set of doors to notify. It never
// shrinks.
type Registry struct {
	doors    []netip.AddrPort
	capacity int
}

// NewRegistry returns an empty registry holding up to capacity doors.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		doors:    make([]netip.AddrPort, 0, capacity),
		capacity: capacity,
	}
}

// Add registers door. It reports whether the door is new; a known door is
// not an error. Past capacity new doors are rejected with ErrRegistryFull.
func (r *Registry) Add(door netip.AddrPort) (bool, error) {
	if slices.Contains(r.doors, door) {
		return false, nil
	}

	if len(r.doors) >= r.capacity {
		return false, ErrRegistryFull
	}

	r.doors = append(r.doors, door)

	return true, nil
}

// Len returns the number of registered doors.
func (r *Registry) Len() int { return len(r.doors) }

// Doors returns the registered doors in registration order.
func (r *Registry) Doors() []netip.AddrPort {
	return slices.Clone(r.doors)
}
