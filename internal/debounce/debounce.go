// Package debounce coalesces bursts of calls into a single deferred invocation.
package debounce

import (
	"context"
	"sync"
	"time"

	"pkt.systems/pslog"
)

// Option configures a debouncer.
type Option func(*options)

type options struct {
	name string
	log  pslog.Logger
}

// WithName labels the debouncer in logs.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the logger used to report recovered panics.
func WithLogger(logger pslog.Logger) Option {
	return func(o *options) { o.log = logger }
}

// Value delivers the most recent argument to fn once calls stop arriving for
// the configured delay. Earlier arguments are dropped.
type Value[T any] struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func(T)
	timer   *time.Timer
	seq     uint64
	latest  T
	stopped bool
	name    string
	log     pslog.Logger
}

// NewValue returns a debouncer that calls fn with the latest argument.
func NewValue[T any](delay time.Duration, fn func(T), opts ...Option) *Value[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = pslog.Ctx(context.Background())
	}
	if o.name != "" {
		o.log = o.log.With("debounce", o.name)
	}
	return &Value[T]{delay: delay, fn: fn, name: o.name, log: o.log}
}

// Call records value and (re)arms the timer.
func (d *Value[T]) Call(value T) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.latest = value
	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Pending reports whether an invocation is scheduled.
func (d *Value[T]) Pending() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Flush runs a scheduled invocation immediately on the calling goroutine.
// It reports whether anything was pending.
func (d *Value[T]) Flush() bool {
	if d == nil {
		return false
	}
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.seq++
	value := d.latest
	d.mu.Unlock()
	d.invoke(value)
	return true
}

// Stop cancels any scheduled invocation and ignores further calls.
func (d *Value[T]) Stop() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}

func (d *Value[T]) fire(seq uint64) {
	d.mu.Lock()
	// A timer that was stopped too late to prevent its callback still fires;
	// only the latest arming may invoke fn.
	if d.stopped || seq != d.seq || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	value := d.latest
	d.mu.Unlock()
	d.invoke(value)
}

func (d *Value[T]) invoke(value T) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("debounced action panicked", "panic", r)
		}
	}()
	d.fn(value)
}

// Func runs fn once calls stop arriving for the configured delay.
type Func struct {
	inner *Value[struct{}]
}

// New returns a debouncer for an argument-less action.
func New(delay time.Duration, fn func(), opts ...Option) *Func {
	return &Func{inner: NewValue(delay, func(struct{}) { fn() }, opts...)}
}

// Call (re)arms the timer.
func (d *Func) Call() {
	if d == nil {
		return
	}
	d.inner.Call(struct{}{})
}

// Pending reports whether an invocation is scheduled.
func (d *Func) Pending() bool {
	if d == nil {
		return false
	}
	return d.inner.Pending()
}

// Flush runs a scheduled invocation immediately.
func (d *Func) Flush() bool {
	if d == nil {
		return false
	}
	return d.inner.Flush()
}

// Stop cancels any scheduled invocation and ignores further calls.
func (d *Func) Stop() {
	if d == nil {
		return
	}
	d.inner.Stop()
}
