package core

import "sync"

// Cell is the canonical holder of a value read by deferred callbacks. Set
// stores synchronously; watchers run afterwards with the new value, so a
// watcher that reads the cell never observes an older value than the one it
// was called with.
type Cell[T any] struct {
	mu       sync.RWMutex
	value    T
	watchers []func(T)
}

// NewCell returns a cell holding value.
func NewCell[T any](value T) *Cell[T] {
	return &Cell[T]{value: value}
}

// Load returns the current value.
func (c *Cell[T]) Load() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Store replaces the value and notifies watchers.
func (c *Cell[T]) Store(value T) {
	c.mu.Lock()
	c.value = value
	watchers := append([]func(T){}, c.watchers...)
	c.mu.Unlock()
	for _, watch := range watchers {
		watch(value)
	}
}

// Swap replaces the value and returns the previous one. Watchers are notified.
func (c *Cell[T]) Swap(value T) T {
	c.mu.Lock()
	old := c.value
	c.value = value
	watchers := append([]func(T){}, c.watchers...)
	c.mu.Unlock()
	for _, watch := range watchers {
		watch(value)
	}
	return old
}

// Watch registers fn to run after every Store.
func (c *Cell[T]) Watch(fn func(T)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.watchers = append(c.watchers, fn)
	c.mu.Unlock()
}
