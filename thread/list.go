package thread

import (
	"errors"
	"slices"
	"sync"
)

// ErrShuttingDown is returned by Register once Shutdown has been called.
var ErrShuttingDown = errors.New("thread: runtime is shutting down")

// List is the registry of live threads.
type List struct {
	shutdownMu   sync.Mutex // runtime-shutdown lock, acquired first
	shuttingDown bool

	mu      sync.Mutex // thread-list lock, acquired second
	threads []*Thread
	nextID  uint64
}

// NewList returns an empty registry.
func NewList() *List {
	return &List{nextID: 1}
}

// Register creates and registers a new thread.
func (l *List) Register(name string) (*Thread, error) {
	l.shutdownMu.Lock()
	defer l.shutdownMu.Unlock()
	if l.shuttingDown {
		return nil, ErrShuttingDown
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	t := New(l.nextID, name)
	l.nextID++
	l.threads = append(l.threads, t)
	return t, nil
}

// Unregister removes t from the registry. Its TLAB must have been revoked
// by every space it allocated from.
func (l *List) Unregister(t *Thread) {
	l.shutdownMu.Lock()
	defer l.shutdownMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()

	if i := slices.Index(l.threads, t); i >= 0 {
		l.threads = slices.Delete(l.threads, i, i+1)
	}
}

// Len returns the number of registered threads.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.threads)
}

// WithLocked calls fn with the registry's shutdown and list locks held, in
// that order. fn must not retain the slice or call back into the List.
func (l *List) WithLocked(fn func(threads []*Thread)) {
	l.shutdownMu.Lock()
	defer l.shutdownMu.Unlock()
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.threads)
}

// Snapshot returns a copy of the registered threads.
func (l *List) Snapshot() []*Thread {
	var out []*Thread
	l.WithLocked(func(threads []*Thread) {
		out = slices.Clone(threads)
	})
	return out
}

// Shutdown stops further registrations.
func (l *List) Shutdown() {
	l.shutdownMu.Lock()
	defer l.shutdownMu.Unlock()
	l.shuttingDown = true
}
