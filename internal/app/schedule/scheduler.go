package schedule

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrStopped         = errors.New("schedule: scheduler stopped")
	ErrInvalidInterval = errors.New("schedule: interval must be positive")
	ErrNameRequired    = errors.New("schedule: task name required")
)

// Task is one tick of a periodic job. ctx is canceled when the task is replaced,
// canceled or the scheduler stops.
type Task func(ctx context.Context)

// TaskInfo describes a running periodic task.
type TaskInfo struct {
	Name     string
	Target   string
	Interval time.Duration
}

// Scheduler runs named periodic tasks. A name identifies at most one running
// task: scheduling under a taken name cancels the previous instance first.
type Scheduler struct {
	mu      sync.Mutex
	parent  context.Context
	tasks   map[string]*entry
	seq     uint64
	stopped bool
	wg      sync.WaitGroup
	logger  *slog.Logger
}

type entry struct {
	id     uint64
	info   TaskInfo
	cancel context.CancelFunc
}

// New builds a scheduler whose tasks inherit ctx.
func New(ctx context.Context, logger *slog.Logger) *Scheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Scheduler{
		parent: ctx,
		tasks:  make(map[string]*entry),
		logger: logger,
	}
}

// Every starts task under name, ticking each interval. The first run happens
// one interval after the call.
func (s *Scheduler) Every(name, target string, interval time.Duration, task Task) error {
	if name == "" {
		return ErrNameRequired
	}
	if interval <= 0 {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if prev, ok := s.tasks[name]; ok {
		prev.cancel()
		delete(s.tasks, name)
		s.debug("task replaced", prev.info)
	}
	ctx, cancel := context.WithCancel(s.parent)
	s.seq++
	e := &entry{
		id:     s.seq,
		info:   TaskInfo{Name: name, Target: target, Interval: interval},
		cancel: cancel,
	}
	s.tasks[name] = e
	s.wg.Add(1)
	go s.run(ctx, e, task)
	s.debug("task scheduled", e.info)
	return nil
}

// Cancel stops the task registered under name. It reports whether one was running.
func (s *Scheduler) Cancel(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[name]
	if !ok {
		return false
	}
	e.cancel()
	delete(s.tasks, name)
	s.debug("task canceled", e.info)
	return true
}

// Lookup returns the running task registered under name.
func (s *Scheduler) Lookup(name string) (TaskInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tasks[name]
	if !ok {
		return TaskInfo{}, false
	}
	return e.info, true
}

// Tasks lists running tasks ordered by name.
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.Lock()
	out := make([]TaskInfo, 0, len(s.tasks))
	for _, e := range s.tasks {
		out = append(out, e.info)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stop cancels every task and waits for their goroutines to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for name, e := range s.tasks {
		e.cancel()
		delete(s.tasks, name)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, e *entry, task Task) {
	defer s.wg.Done()
	ticker := time.NewTicker(e.info.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.forget(e)
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				s.forget(e)
				return
			}
			task(ctx)
		}
	}
}

// forget drops e if it is still registered, e.g. after the parent context ended.
func (s *Scheduler) forget(e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.tasks[e.info.Name]; ok && cur.id == e.id {
		delete(s.tasks, e.info.Name)
	}
}

func (s *Scheduler) debug(msg string, info TaskInfo) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, "task", info.Name, "target", info.Target, "interval", info.Interval)
}
