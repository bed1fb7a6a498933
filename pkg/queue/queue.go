// Package queue runs background jobs off the request path.
//
// A job is a JSON-encodable struct with a stable name:
//
//	type SendOrderMail struct{ OrderID string }
//	func (*SendOrderMail) Name() string                      { return "order.mail" }
//	func (j *SendOrderMail) Handle(ctx context.Context) error { ... }
//
//	queue.Register(func() queue.Job { return &SendOrderMail{} })
//	queue.Dispatch(ctx, &SendOrderMail{OrderID: id})
//
// Workers started with StartWorkers decode each message by name and retry a
// failing job with a linear backoff before filing it as failed.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

type Job interface {
	// Name identifies the job type on the wire. It must not change while
	// messages of the old name may still be queued.
	Name() string
	Handle(ctx context.Context) error
}

// Driver stores encoded messages.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop may return nil, nil when it gave up waiting.
	Pop(ctx context.Context) ([]byte, error)
}

// DelayedDriver holds a message until its run time itself.
type DelayedDriver interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// message is what a driver stores.
type message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Queued  time.Time       `json:"queued_at"`
}

// Manager ties a driver to the registered job types.
type Manager struct {
	mu          sync.RWMutex
	driver      Driver
	factories   map[string]func() Job
	maxAttempts int
	backoff     time.Duration
}

var std = &Manager{
	driver:      NewMemoryDriver(1000),
	factories:   make(map[string]func() Job),
	maxAttempts: 3,
	backoff:     time.Second,
}

func (m *Manager) current() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

func (m *Manager) settings() (int, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.maxAttempts, m.backoff
}

func (m *Manager) factory(name string) (func() Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.factories[name]
	return f, ok
}

func SetDriver(d Driver) {
	std.mu.Lock()
	std.driver = d
	std.mu.Unlock()
}

// SetMaxAttempts sets how often a failing job runs before it is filed.
func SetMaxAttempts(n int) {
	if n < 1 {
		n = 1
	}
	std.mu.Lock()
	std.maxAttempts = n
	std.mu.Unlock()
}

// SetBackoff sets the base delay; the wait after attempt n is n*d.
func SetBackoff(d time.Duration) {
	std.mu.Lock()
	std.backoff = d
	std.mu.Unlock()
}

// Register makes workers able to decode the job newJob builds.
func Register(newJob func() Job) {
	name := newJob().Name()
	std.mu.Lock()
	std.factories[name] = newJob
	std.mu.Unlock()
}

func encode(job Job) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: encode %s: %w", job.Name(), err)
	}
	return json.Marshal(message{
		ID:      uuid.NewString(),
		Type:    job.Name(),
		Payload: payload,
		Queued:  time.Now().UTC(),
	})
}

// Dispatch queues job to run as soon as a worker is free.
func Dispatch(ctx context.Context, job Job) error {
	raw, err := encode(job)
	if err != nil {
		return err
	}
	return std.current().Push(ctx, raw)
}

// DispatchAfter queues job to run after delay. Without a DelayedDriver the
// message is held in process and lost on restart.
func DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	raw, err := encode(job)
	if err != nil {
		return err
	}
	d := std.current()
	if dd, ok := d.(DelayedDriver); ok {
		return dd.PushDelayed(ctx, raw, delay)
	}
	time.AfterFunc(delay, func() {
		if err := d.Push(context.WithoutCancel(ctx), raw); err != nil {
			logger.Error("queue: delayed push failed", "job_type", job.Name(), "error", err)
		}
	})
	return nil
}
