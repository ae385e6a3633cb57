// Package keymutex provides a lock table keyed by string, serializing
// check-then-act sequences that share a logical key (a user's cart, a
// (cart, product) pair) without one global lock.
//
// Entries are reference counted and removed when the last holder releases,
// so the table stays proportional to the number of keys currently contended,
// not the number of keys ever seen.
package keymutex

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Table is a set of named mutexes. The zero value is not usable; call New.
type Table struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty lock table.
func New() *Table {
	return &Table{entries: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is available. It returns
// the matching unlock function; callers typically defer it.
func (t *Table) Lock(key string) (unlock func()) {
	t.mu.Lock()
	e, ok := t.entries[key]
	if !ok {
		e = &entry{}
		t.entries[key] = e
	}
	e.refs++
	t.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		t.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(t.entries, key)
		}
		t.mu.Unlock()
	}
}

// Len reports the number of keys currently held or waited on.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
