package intent

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Publisher is the animation-context side of the bus. Publish must never
// block; it reports whether the intent was accepted.
type Publisher interface {
	Publish(i Intent) bool
}

// Handler applies intents in the application context. It may block on I/O.
type Handler interface {
	Apply(ctx context.Context, i Intent) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, i Intent) error

// Apply calls f
func (f HandlerFunc) Apply(ctx context.Context, i Intent) error { return f(ctx, i) }

// ErrorHandler is told about handler failures and recovered panics
type ErrorHandler func(i Intent, err error)

// debugLog is set by the debug package
var debugLog func(args ...interface{})

// SetDebugLog sets the debug logging function
func SetDebugLog(fn func(args ...interface{})) {
	debugLog = fn
}

// DefaultBufferSize is the queue capacity used when none is given
const DefaultBufferSize = 1024

// Bus carries intents from the animation context to a Handler running on its
// own goroutine. Publishing is fire-and-forget: when the queue is full the
// intent is dropped and counted.
type Bus struct {
	queue   chan Intent
	handler Handler
	onError ErrorHandler

	running   atomic.Bool
	dropped   atomic.Int64
	delivered atomic.Int64
	wg        sync.WaitGroup
}

// NewBus creates a bus delivering to h
func NewBus(h Handler, size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{
		queue:   make(chan Intent, size),
		handler: h,
	}
}

// SetErrorHandler sets the callback for handler errors
func (b *Bus) SetErrorHandler(fn ErrorHandler) {
	b.onError = fn
}

// Publish queues i without blocking
func (b *Bus) Publish(i Intent) bool {
	if i == nil {
		return false
	}
	select {
	case b.queue <- i:
		return true
	default:
		b.dropped.Add(1)
		if debugLog != nil {
			debugLog("[Bus] queue full, dropping", i.Kind())
		}
		return false
	}
}

// Start runs the delivery loop until ctx is done. Calling Start on a running
// bus does nothing.
func (b *Bus) Start(ctx context.Context) {
	if !b.running.CompareAndSwap(false, true) {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.running.Store(false)
		b.loop(ctx)
	}()
}

// Wait blocks until the delivery loop has exited
func (b *Bus) Wait() {
	b.wg.Wait()
}

// IsRunning reports whether the delivery loop is active
func (b *Bus) IsRunning() bool {
	return b.running.Load()
}

// Dropped is the number of intents discarded because the queue was full
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Delivered is the number of intents handed to the handler
func (b *Bus) Delivered() int64 {
	return b.delivered.Load()
}

func (b *Bus) loop(ctx context.Context) {
	for {
		var first Intent
		select {
		case <-ctx.Done():
			b.drain(context.WithoutCancel(ctx))
			return
		case first = <-b.queue:
		}

		// collect everything already queued so one slow handler call does
		// not leave the rest waiting behind a select
		batch := []Intent{first}
	drainLoop:
		for {
			select {
			case i := <-b.queue:
				batch = append(batch, i)
			default:
				break drainLoop
			}
		}

		for _, i := range batch {
			b.deliver(ctx, i)
		}
	}
}

// drain delivers whatever is still queued at shutdown
func (b *Bus) drain(ctx context.Context) {
	for {
		select {
		case i := <-b.queue:
			b.deliver(ctx, i)
		default:
			return
		}
	}
}

func (b *Bus) deliver(ctx context.Context, i Intent) {
	defer func() {
		if r := recover(); r != nil {
			b.fail(i, fmt.Errorf("handler panic on %s: %v\n%s", i.Kind(), r, debug.Stack()))
		}
	}()
	if b.handler == nil {
		return
	}
	b.delivered.Add(1)
	if err := b.handler.Apply(ctx, i); err != nil {
		b.fail(i, err)
	}
}

func (b *Bus) fail(i Intent, err error) {
	if debugLog != nil {
		debugLog("[Bus] handler failed for", i.Kind(), err)
	}
	if b.onError != nil {
		b.onError(i, err)
	}
}

// Recorder is a Publisher that keeps every intent in order. It is safe for
// concurrent use.
type Recorder struct {
	mu      sync.Mutex
	intents []Intent
}

// Publish records i
func (r *Recorder) Publish(i Intent) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, i)
	return true
}

// Intents returns a copy of what has been recorded
func (r *Recorder) Intents() []Intent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Intent, len(r.intents))
	copy(out, r.intents)
	return out
}

// Reset forgets everything recorded
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = nil
}
