package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"fip/internal/slogutil"
)

// Scheduler fires registered tasks according to their schedules. Start and
// Stop may be called any number of times; after Stop returns no handler is
// invoked until the next Start.
type Scheduler struct {
	clock  Clock
	logger *slog.Logger

	mu         sync.Mutex
	tasks      map[string]*task
	running    bool
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

type task struct {
	name     string
	schedule cron.Schedule
	handler  TaskHandler
	timer    Timer
	status   TaskStatus
}

// New creates a scheduler. A nil clock uses RealClock.
func New(clock Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{
		clock:  clock,
		logger: slogutil.OrDiscard(logger),
		tasks:  make(map[string]*task),
	}
}

// Register adds or replaces a named task. Registering while running arms
// the task immediately.
func (s *Scheduler) Register(name, expression string, handler TaskHandler) error {
	schedule, err := ParseExpression(expression)
	if err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("task %s: nil handler", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.tasks[name]; ok && old.timer != nil {
		old.timer.Stop()
	}
	t := &task{
		name:     name,
		schedule: schedule,
		handler:  handler,
		status:   TaskStatus{Name: name, Expression: expression},
	}
	s.tasks[name] = t
	if s.running {
		s.armLocked(t)
	}
	s.logger.Debug("Registered scheduled task", "task", name, "expression", expression)
	return nil
}

// Start arms every registered task. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.generation++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	for _, name := range s.namesLocked() {
		s.armLocked(s.tasks[name])
	}
	s.logger.Info("Started scheduler", "tasks", len(s.tasks))
}

// Stop disarms all timers, cancels in-flight handlers and waits for them to
// return. It must not be called from inside a task handler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.generation++
	for _, t := range s.tasks {
		if t.timer != nil {
			t.timer.Stop()
			t.timer = nil
		}
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("Stopped scheduler")
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow executes a task immediately, independent of its schedule and of
// whether the scheduler is running.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task: %s", name)
	}
	return s.execute(ctx, t)
}

// Status returns the state of every task, sorted by name.
func (s *Scheduler) Status() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskStatus, 0, len(s.tasks))
	for _, name := range s.namesLocked() {
		out = append(out, s.tasks[name].status)
	}
	return out
}

func (s *Scheduler) namesLocked() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) armLocked(t *task) {
	now := s.clock.Now()
	next := t.schedule.Next(now)
	t.status.NextRun = next
	gen := s.generation
	t.timer = s.clock.AfterFunc(next.Sub(now), func() {
		s.fire(t, gen)
	})
}

func (s *Scheduler) fire(t *task, gen uint64) {
	s.mu.Lock()
	if !s.running || s.generation != gen || s.tasks[t.name] != t {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	s.wg.Add(1)
	s.mu.Unlock()

	_ = s.execute(ctx, t)
	s.wg.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running && s.generation == gen && s.tasks[t.name] == t {
		s.armLocked(t)
	}
}

func (s *Scheduler) execute(ctx context.Context, t *task) error {
	start := s.clock.Now()
	s.logger.Debug("Executing scheduled task", "task", t.name)

	err := t.handler(ctx)
	duration := s.clock.Now().Sub(start)

	if err != nil {
		s.logger.Warn("Scheduled task failed", "task", t.name, "error", err.Error())
	} else {
		s.logger.Debug("Scheduled task completed", "task", t.name, "duration", duration)
	}

	s.mu.Lock()
	t.status.markRun(start, duration, err)
	s.mu.Unlock()
	return err
}
