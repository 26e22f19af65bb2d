// Package pathlock serializes content-level access with named locks
// keyed on storage paths. Readers hold a path non-exclusively; any
// write or generate step requires exclusive hold for its duration.
// Locks are scoped to a single step and must be released on every exit
// path.
package pathlock

import (
	"sync"
)

// Manager hands out per-path reader/writer locks. Lock entries are
// reference-counted and dropped once the last holder releases, so the
// map does not grow with the number of paths ever touched.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	lock sync.RWMutex
	refs int
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*entry)}
}

func (m *Manager) acquire(path string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.locks[path]
	if !ok {
		e = &entry{}
		m.locks[path] = e
	}
	e.refs++
	return e
}

func (m *Manager) release(path string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.locks, path)
	}
}

// RLock takes the path's lock shared and returns the release function.
func (m *Manager) RLock(path string) func() {
	e := m.acquire(path)
	e.lock.RLock()
	return func() {
		e.lock.RUnlock()
		m.release(path, e)
	}
}

// Lock takes the path's lock exclusive and returns the release function.
func (m *Manager) Lock(path string) func() {
	e := m.acquire(path)
	e.lock.Lock()
	return func() {
		e.lock.Unlock()
		m.release(path, e)
	}
}
