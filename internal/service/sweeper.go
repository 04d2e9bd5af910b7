package service

import (
	"sync"
	"time"
)

// Sweeper runs at most one deferred task per key. Scheduling a key again
// replaces its pending task, and a replaced or cancelled task never runs even
// if its timer has already fired.
type Sweeper struct {
	mu      sync.Mutex
	tasks   map[string]*sweepTask
	nextGen uint64
	stopped bool
}

type sweepTask struct {
	timer *time.Timer
	gen   uint64
}

func NewSweeper() *Sweeper {
	return &Sweeper{tasks: make(map[string]*sweepTask)}
}

// Schedule arranges for fn to run after delay unless the key is rescheduled
// or cancelled first.
func (s *Sweeper) Schedule(key string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if prev, ok := s.tasks[key]; ok {
		prev.timer.Stop()
	}

	s.nextGen++
	task := &sweepTask{gen: s.nextGen}
	task.timer = time.AfterFunc(delay, func() {
		if s.claim(key, task.gen) {
			fn()
		}
	})
	s.tasks[key] = task
}

// claim removes the task for key if it is still generation gen.
func (s *Sweeper) claim(key string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[key]
	if !ok || current.gen != gen || s.stopped {
		return false
	}
	delete(s.tasks, key)
	return true
}

// Cancel drops the pending task for key. It reports whether one was pending.
func (s *Sweeper) Cancel(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[key]
	if !ok {
		return false
	}
	task.timer.Stop()
	delete(s.tasks, key)
	return true
}

func (s *Sweeper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels every pending task. Later calls to Schedule are ignored.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for key, task := range s.tasks {
		task.timer.Stop()
		delete(s.tasks, key)
	}
}
