package chunkstore

import "sync"

// Locks coordinates writers for backends that cannot serialize inserts on
// their own. Create and delete take the exclusive lock; an insert takes the
// shared lock plus a mutex scoped to its collection, so inserts into
// different collections run in parallel.
type Locks struct {
	mu      sync.RWMutex
	writers sync.Map // collection name -> *sync.Mutex
}

// Exclusive locks out every writer and returns the unlock function.
func (l *Locks) Exclusive() func() {
	l.mu.Lock()
	return l.mu.Unlock
}

// Writer serializes writers of one collection and returns the unlock
// function.
func (l *Locks) Writer(name string) func() {
	l.mu.RLock()
	m, _ := l.writers.LoadOrStore(name, &sync.Mutex{})
	w := m.(*sync.Mutex)
	w.Lock()

	return func() {
		w.Unlock()
		l.mu.RUnlock()
	}
}

// Forget drops the collection's writer mutex. Call it while holding the
// exclusive lock.
func (l *Locks) Forget(name string) {
	l.writers.Delete(name)
}
