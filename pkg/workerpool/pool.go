// Package workerpool runs tasks on a bounded number of goroutines.
//
//	pool := workerpool.New(4)
//	for _, o := range orders {
//	    o := o
//	    if err := pool.Go(ctx, func(ctx context.Context) { reconcile(ctx, o) }); err != nil {
//	        break // ctx cancelled
//	    }
//	}
//	pool.Wait()
//
// A panicking task is recovered and reported; it never takes the process
// down with it.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

var (
	ErrPoolFull   = errors.New("workerpool: all workers busy")
	ErrPoolClosed = errors.New("workerpool: closed")
)

type Pool struct {
	slots chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	// OnPanic is called with the recovered value of a panicking task.
	// It defaults to logging it.
	OnPanic func(v any)
}

// New returns a pool running at most size tasks at once.
func New(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		slots: make(chan struct{}, size),
		OnPanic: func(v any) {
			logger.Error("workerpool: task panicked", "panic", fmt.Sprint(v))
		},
	}
}

// Go blocks until a worker is free and starts task on it. It returns
// ctx.Err() if ctx ends first and ErrPoolClosed after Wait.
func (p *Pool) Go(ctx context.Context, task func(context.Context)) error {
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	return p.start(ctx, task)
}

// TryGo is Go without waiting: it returns ErrPoolFull when every worker
// is busy.
func (p *Pool) TryGo(ctx context.Context, task func(context.Context)) error {
	select {
	case p.slots <- struct{}{}:
	default:
		return ErrPoolFull
	}
	return p.start(ctx, task)
}

func (p *Pool) start(ctx context.Context, task func(context.Context)) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		<-p.slots
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	go func() {
		defer func() {
			if v := recover(); v != nil && p.OnPanic != nil {
				p.OnPanic(v)
			}
			<-p.slots
			p.wg.Done()
		}()
		task(ctx)
	}()
	return nil
}

// Wait closes the pool to new tasks and returns once the running ones
// have finished. It is safe to call more than once.
func (p *Pool) Wait() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Busy is the number of tasks running right now.
func (p *Pool) Busy() int { return len(p.slots) }
