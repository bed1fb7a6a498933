package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueFull is returned when a MemoryDriver holds its capacity.
var ErrQueueFull = errors.New("queue: memory queue is full")

// MemoryDriver is a bounded FIFO inside the process. Jobs are lost on
// restart, so it suits development, tests and single-binary deployments.
type MemoryDriver struct {
	mu    sync.Mutex
	jobs  [][]byte
	limit int
	// signal holds one token while jobs may be waiting.
	signal chan struct{}
}

func NewMemoryDriver(limit int) *MemoryDriver {
	return &MemoryDriver{limit: limit, signal: make(chan struct{}, 1)}
}

func (d *MemoryDriver) Push(_ context.Context, payload []byte) error {
	d.mu.Lock()
	if len(d.jobs) >= d.limit {
		d.mu.Unlock()
		return ErrQueueFull
	}
	d.jobs = append(d.jobs, payload)
	d.mu.Unlock()
	d.wake()
	return nil
}

// Pop blocks until a job is queued or ctx ends.
func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	for {
		d.mu.Lock()
		if len(d.jobs) > 0 {
			job := d.jobs[0]
			d.jobs[0] = nil
			d.jobs = d.jobs[1:]
			more := len(d.jobs) > 0
			d.mu.Unlock()
			if more {
				d.wake()
			}
			return job, nil
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.signal:
		}
	}
}

func (d *MemoryDriver) wake() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *MemoryDriver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.jobs)
}
