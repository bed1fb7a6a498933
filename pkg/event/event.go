// Package event lets the order services announce state changes without
// knowing who listens. Listeners run with the firing request's context
// values (request id, logger) but not its cancellation, so a client that
// hangs up does not abort a Kafka publish.
package event

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

type Handler func(ctx context.Context, payload any)

type subscription struct {
	id int
	h  Handler
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int
	wg     sync.WaitGroup
}

func New() *Bus {
	return &Bus{subs: map[string][]subscription{}}
}

// Default is the process-wide bus.
var Default = New()

// Listen subscribes h to name. The returned func unsubscribes it.
func (b *Bus) Listen(name string, h Handler) (stop func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, h: h})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[name]
		for i, s := range subs {
			if s.id == id {
				b.subs[name] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) handlers(name string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]subscription(nil), b.subs[name]...)
}

// Fire runs the listeners of name one after another before returning.
func (b *Bus) Fire(ctx context.Context, name string, payload any) {
	ctx = context.WithoutCancel(ctx)
	for _, s := range b.handlers(name) {
		run(ctx, name, s.h, payload)
	}
}

// FireAsync starts each listener on its own goroutine and returns.
func (b *Bus) FireAsync(ctx context.Context, name string, payload any) {
	ctx = context.WithoutCancel(ctx)
	for _, s := range b.handlers(name) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			run(ctx, name, h, payload)
		}(s.h)
	}
}

// Wait blocks until listeners started by FireAsync have returned.
func (b *Bus) Wait() { b.wg.Wait() }

// run isolates a panicking listener from the others.
func run(ctx context.Context, name string, h Handler, payload any) {
	defer func() {
		if v := recover(); v != nil {
			logger.WithCtx(ctx).Error("event: listener panicked",
				"event", name, "panic", fmt.Sprint(v), "stack", string(debug.Stack()))
		}
	}()
	h(ctx, payload)
}

func Listen(name string, h Handler) func() { return Default.Listen(name, h) }

func Fire(ctx context.Context, name string, payload any) { Default.Fire(ctx, name, payload) }

func FireAsync(ctx context.Context, name string, payload any) {
	Default.FireAsync(ctx, name, payload)
}

func Wait() { Default.Wait() }
