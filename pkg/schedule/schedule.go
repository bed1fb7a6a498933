// Package schedule runs the periodic background tasks of the service:
// reconciling unpaid orders and pruning the failed-job table.
//
//	schedule.Add(schedule.Task{
//		Name:      "orders:reconcile",
//		Every:     5 * time.Minute,
//		Exclusive: true,
//		Run:       reconciler.Tick,
//	})
//	schedule.Start(ctx)
//
// Every task runs once at Start and then on its own ticker. An exclusive
// task never runs twice at the same time; ticks that arrive while it is busy
// are dropped.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/shashiranjanraj/foodie/pkg/logger"
)

// Task is one periodic job.
type Task struct {
	Name      string
	Every     time.Duration
	Exclusive bool
	Run       func(ctx context.Context) error
}

// Scheduler owns a set of tasks. The zero value is ready to use.
type Scheduler struct {
	mu      sync.Mutex
	tasks   map[string]*slot
	started bool
	wg      sync.WaitGroup
}

type slot struct {
	Task
	busy sync.Mutex
}

// Default is the scheduler behind the package-level functions.
var Default = &Scheduler{}

// Add registers t. Names must be unique and Every positive.
func (s *Scheduler) Add(t Task) error {
	switch {
	case t.Name == "":
		return errors.New("schedule: task needs a name")
	case t.Every <= 0:
		return fmt.Errorf("schedule: task %q needs a positive interval", t.Name)
	case t.Run == nil:
		return fmt.Errorf("schedule: task %q has nothing to run", t.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("schedule: cannot add %q after Start", t.Name)
	}
	if _, dup := s.tasks[t.Name]; dup {
		return fmt.Errorf("schedule: task %q registered twice", t.Name)
	}
	if s.tasks == nil {
		s.tasks = make(map[string]*slot)
	}
	s.tasks[t.Name] = &slot{Task: t}
	return nil
}

// Tasks lists the registered tasks by name.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, sl := range s.tasks {
		out = append(out, sl.Task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start launches one goroutine per task. They stop when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	slots := make([]*slot, 0, len(s.tasks))
	for _, sl := range s.tasks {
		slots = append(slots, sl)
	}
	s.mu.Unlock()

	for _, sl := range slots {
		s.wg.Add(1)
		go s.loop(ctx, sl)
	}
	logger.Info("schedule: started", "tasks", len(slots))
}

// Wait blocks until every loop and run started by Start has returned.
func (s *Scheduler) Wait() { s.wg.Wait() }

func (s *Scheduler) loop(ctx context.Context, sl *slot) {
	defer s.wg.Done()
	t := time.NewTicker(sl.Every)
	defer t.Stop()

	s.fire(ctx, sl)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.fire(ctx, sl)
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, sl *slot) {
	if !sl.Exclusive {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			run(ctx, sl.Task)
		}()
		return
	}
	if !sl.busy.TryLock() {
		logger.Warn("schedule: previous run still busy, skipping", "task", sl.Name)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer sl.busy.Unlock()
		run(ctx, sl.Task)
	}()
}

// RunNow runs the named task in the foreground, or every task when name
// is empty. Exclusive tasks that are busy are skipped.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var picked []*slot
	for _, sl := range s.tasks {
		if name == "" || sl.Name == name {
			picked = append(picked, sl)
		}
	}
	s.mu.Unlock()

	if name != "" && len(picked) == 0 {
		return fmt.Errorf("schedule: no task named %q", name)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].Name < picked[j].Name })

	var errs []error
	for _, sl := range picked {
		if sl.Exclusive {
			if !sl.busy.TryLock() {
				continue
			}
			errs = append(errs, run(ctx, sl.Task))
			sl.busy.Unlock()
			continue
		}
		errs = append(errs, run(ctx, sl.Task))
	}
	return errors.Join(errs...)
}

func run(ctx context.Context, t Task) (err error) {
	start := time.Now()
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("schedule: task %q panicked: %v", t.Name, v)
			logger.Error("schedule: task panicked", "task", t.Name, "panic", fmt.Sprint(v), "stack", string(debug.Stack()))
		}
	}()

	if err = t.Run(ctx); err != nil {
		logger.Error("schedule: task failed", "task", t.Name, "error", err)
		return fmt.Errorf("%s: %w", t.Name, err)
	}
	logger.Debug("schedule: task done", "task", t.Name, "took", time.Since(start).String())
	return nil
}

func Add(t Task) error                              { return Default.Add(t) }
func Tasks() []Task                                 { return Default.Tasks() }
func Start(ctx context.Context)                     { Default.Start(ctx) }
func Wait()                                         { Default.Wait() }
func RunNow(ctx context.Context, name string) error { return Default.RunNow(ctx, name) }
