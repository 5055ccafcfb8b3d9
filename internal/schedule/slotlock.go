package schedule

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SlotKey is the mutual-exclusion key for one bookable slot.
func SlotKey(doctorID uuid.UUID, date, timeOfDay string) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date, timeOfDay)
}

type slotEntry struct {
	mu   sync.Mutex
	refs int
}

// SlotLocks provides per-slot mutual exclusion so a conflict check and the
// subsequent insert run atomically for a given slot. Slots for different
// doctors or times never contend. Entries are reference-counted and removed
// once the last holder releases, so the map does not grow with history.
type SlotLocks struct {
	mu    sync.Mutex
	slots map[string]*slotEntry
}

func NewSlotLocks() *SlotLocks {
	return &SlotLocks{slots: make(map[string]*slotEntry)}
}

// Lock acquires the mutex for key and returns the release function. The
// release must run on every exit path of the critical section.
func (l *SlotLocks) Lock(key string) func() {
	l.mu.Lock()
	entry, ok := l.slots[key]
	if !ok {
		entry = &slotEntry{}
		l.slots[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			l.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(l.slots, key)
			}
			l.mu.Unlock()
		})
	}
}
