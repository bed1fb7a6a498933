package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
)

// StartWorkers runs n workers until ctx is done. Wait on the returned group
// to let in-flight jobs finish.
func StartWorkers(ctx context.Context, n int) *sync.WaitGroup {
	wg := new(sync.WaitGroup)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			std.work(ctx)
		}()
	}
	logger.Info("queue: workers started", "count", n)
	return wg
}

func (m *Manager) work(ctx context.Context) {
	for ctx.Err() == nil {
		raw, err := m.current().Pop(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return
		case err != nil:
			logger.Warn("queue: pop failed", "error", err)
			wait(ctx, 500*time.Millisecond)
		case raw != nil:
			m.handle(ctx, raw)
		}
	}
}

func (m *Manager) handle(ctx context.Context, raw []byte) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Error("queue: dropping undecodable message", "error", err)
		return
	}
	log := logger.L.With("job_id", msg.ID, "job_type", msg.Type)

	newJob, ok := m.factory(msg.Type)
	if !ok {
		log.Warn("queue: no job registered under this name")
		return
	}
	job := newJob()
	if err := json.Unmarshal(msg.Payload, job); err != nil {
		log.Error("queue: bad job payload", "error", err)
		return
	}
	m.attempt(logger.InjectLogger(ctx, log), msg, raw, job)
}

// attempt runs job until it succeeds, its attempts run out or ctx ends.
func (m *Manager) attempt(ctx context.Context, msg message, raw []byte, job Job) {
	maxAttempts, backoff := m.settings()
	log := logger.WithCtx(ctx)
	start := time.Now()

	var err error
	n := 0
	for n < maxAttempts {
		n++
		if err = job.Handle(ctx); err == nil {
			metrics.RecordQueueJob(msg.Type, "success", start)
			log.Debug("queue: job done", "attempts", n, "waited", start.Sub(msg.Queued).String())
			return
		}
		log.Warn("queue: attempt failed", "attempt", n, "error", err)
		if n < maxAttempts && !wait(ctx, time.Duration(n)*backoff) {
			break
		}
	}

	metrics.RecordQueueJob(msg.Type, "failed", start)
	log.Error("queue: giving up on job", "attempts", n, "error", err)
	m.file(ctx, msg, raw, err, n)
}

// wait sleeps for d and reports false when ctx ended first.
func wait(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
