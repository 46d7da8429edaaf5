// Package reactive provides observable values and memoized derivations.
//
// A Computed lists the sources it reads when it is created; any change to a
// source invalidates it, and the next Get recomputes it wholesale.
package reactive

import (
	"sync"
)

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// Observer is told that something it depends on has changed
type Observer interface {
	Invalidate()
}

// Source is anything observers can subscribe to
type Source interface {
	Subscribe(o Observer)
	Unsubscribe(o Observer)
}

// observers is a set of subscribers guarded by its own lock so notification
// happens outside the value lock
type observers struct {
	mu  sync.RWMutex
	set map[Observer]struct{}
}

func (s *observers) add(o Observer) {
	if o == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set == nil {
		s.set = make(map[Observer]struct{})
	}
	s.set[o] = struct{}{}
}

func (s *observers) remove(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, o)
}

func (s *observers) notify() {
	s.mu.RLock()
	list := make([]Observer, 0, len(s.set))
	for o := range s.set {
		list = append(list, o)
	}
	s.mu.RUnlock()

	for _, o := range list {
		o.Invalidate()
	}
}

func (s *observers) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// State is an observable value
type State[T any] struct {
	value T
	mu    sync.RWMutex
	obs   observers
	name  string
}

// NewState creates a state holding initial. The name only appears in debug
// output.
func NewState[T any](name string, initial T) *State[T] {
	return &State[T]{value: initial, name: name}
}

// Get returns the current value
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies observers
func (s *State[T]) Set(value T) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()

	if debugLog != nil {
		debugLog("[State]", s.name, "set, notifying", s.obs.len(), "observers")
	}
	s.obs.notify()
}

// Update atomically reads, modifies and writes the value
func (s *State[T]) Update(fn func(T) T) {
	s.mu.Lock()
	s.value = fn(s.value)
	s.mu.Unlock()

	if debugLog != nil {
		debugLog("[State]", s.name, "updated")
	}
	s.obs.notify()
}

// Subscribe adds an observer
func (s *State[T]) Subscribe(o Observer) { s.obs.add(o) }

// Unsubscribe removes an observer
func (s *State[T]) Unsubscribe(o Observer) { s.obs.remove(o) }

// Computed is a memoized value derived from sources
type Computed[T any] struct {
	compute func() T
	value   T
	valid   bool
	runs    int
	mu      sync.Mutex
	obs     observers
	sources []Source
}

// NewComputed creates a computed value recomputed whenever one of deps
// changes
func NewComputed[T any](compute func() T, deps ...Source) *Computed[T] {
	c := &Computed[T]{compute: compute, sources: deps}
	for _, d := range deps {
		d.Subscribe(c)
	}
	return c
}

// Get returns the value, recomputing it if a source changed
func (c *Computed[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		c.value = c.compute()
		c.valid = true
		c.runs++
	}
	return c.value
}

// Valid reports whether the cached value is current
func (c *Computed[T]) Valid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// Runs is the number of times the value has been computed
func (c *Computed[T]) Runs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

// Invalidate marks the value stale and passes the change on
func (c *Computed[T]) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()

	c.obs.notify()
}

// Subscribe adds an observer
func (c *Computed[T]) Subscribe(o Observer) { c.obs.add(o) }

// Unsubscribe removes an observer
func (c *Computed[T]) Unsubscribe(o Observer) { c.obs.remove(o) }

// Dispose detaches the computed value from its sources
func (c *Computed[T]) Dispose() {
	for _, d := range c.sources {
		d.Unsubscribe(c)
	}
	c.sources = nil
}

// Watcher runs a callback whenever one of its sources changes
type Watcher struct {
	fn      func()
	sources []Source
}

// Watch calls fn after each change to any of deps
func Watch(fn func(), deps ...Source) *Watcher {
	w := &Watcher{fn: fn, sources: deps}
	for _, d := range deps {
		d.Subscribe(w)
	}
	return w
}

// Invalidate runs the callback
func (w *Watcher) Invalidate() {
	if w.fn != nil {
		w.fn()
	}
}

// Stop detaches the watcher
func (w *Watcher) Stop() {
	for _, d := range w.sources {
		d.Unsubscribe(w)
	}
	w.sources = nil
}
