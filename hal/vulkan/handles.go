package vulkan

import "sync"

// handleTable maps the opaque hal handles handed to the core onto the
// vkngwrapper objects behind them. Handles start at 1 so the zero value is
// never live.
type handleTable[T any] struct {
	mu      sync.Mutex
	next    uint64
	entries map[uint64]T
}

func (t *handleTable[T]) add(value T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries == nil {
		t.entries = make(map[uint64]T)
	}
	t.next++
	t.entries[t.next] = value
	return t.next
}

func (t *handleTable[T]) get(handle uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	value, ok := t.entries[handle]
	return value, ok
}

func (t *handleTable[T]) remove(handle uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	value, ok := t.entries[handle]
	delete(t.entries, handle)
	return value, ok
}

func (t *handleTable[T]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
