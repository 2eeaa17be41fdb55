package overseer

import (
	"net/netip"
	"slices"
	"sync"

	"github.com/oshokin/building-safety/internal/domain/door"
)

// doorEntry is a door that announced itself.
type doorEntry struct {
	ID      int
	Address netip.AddrPort
	Mode    door.Mode
	// cycle serialises access cycles of the door.
	cycle *sync.Mutex
}

// directory tracks the announced devices.
type directory struct {
	// mu protects doors and readers.
	mu      sync.RWMutex
	doors   map[int]doorEntry
	readers map[int]struct{}
}

func newDirectory() *directory {
	return &directory{
		doors:   make(map[int]doorEntry),
		readers: make(map[int]struct{}),
	}
}

// addDoor records a door. A door announcing again under the same id
// replaces its address and mode but keeps its cycle lock.
func (d *directory) addDoor(id int, address netip.AddrPort, mode door.Mode) doorEntry {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry, ok := d.doors[id]
	if !ok {
		entry.cycle = new(sync.Mutex)
	}

	entry.ID = id
	entry.Address = address
	entry.Mode = mode
	d.doors[id] = entry

	return entry
}

// door looks a door up by id.
func (d *directory) door(id int) (doorEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	entry, ok := d.doors[id]

	return entry, ok
}

// addReader records a card reader and reports whether it is new.
func (d *directory) addReader(id int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.readers[id]; ok {
		return false
	}

	d.readers[id] = struct{}{}

	return true
}

// doorIDs returns the registered door ids in ascending order.
func (d *directory) doorIDs() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]int, 0, len(d.doors))
	for id := range d.doors {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// readerIDs returns the registered card reader ids in ascending order.
func (d *directory) readerIDs() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]int, 0, len(d.readers))
	for id := range d.readers {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}
