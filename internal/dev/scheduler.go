package dev

import (
	"context"
	"sync"
)

// scheduler runs at most one build at a time and coalesces every change
// that arrives meanwhile into a single pending build. A new change cancels
// the build in flight; its paths are carried over to the next one.
// Once ctx is done, schedule is a no-op.
type scheduler struct {
	run func(ctx context.Context, changed []string)

	mu       sync.Mutex
	ctx      context.Context
	running  bool
	pending  bool
	paths    []string
	seen     map[string]bool
	inflight []string
	cancel   context.CancelFunc

	// idle is closed when the current loop exits. Nil while no loop runs.
	idle chan struct{}
}

func newScheduler(ctx context.Context, run func(ctx context.Context, changed []string)) *scheduler {
	return &scheduler{run: run, ctx: ctx, seen: make(map[string]bool)}
}

// schedule requests a build covering paths.
func (s *scheduler) schedule(paths []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	s.add(paths)
	s.pending = true

	if s.running {
		if s.cancel != nil {
			s.cancel()
			s.add(s.inflight)
		}
		return
	}
	s.running = true
	s.idle = make(chan struct{})
	go s.loop(s.idle)
}

// add merges paths into the pending set. Callers hold s.mu.
func (s *scheduler) add(paths []string) {
	for _, p := range paths {
		if !s.seen[p] {
			s.seen[p] = true
			s.paths = append(s.paths, p)
		}
	}
}

func (s *scheduler) loop(idle chan struct{}) {
	for {
		s.mu.Lock()
		if !s.pending || s.ctx.Err() != nil {
			s.running = false
			s.idle = nil
			close(idle)
			s.mu.Unlock()
			return
		}
		changed := s.paths
		s.paths = nil
		s.seen = make(map[string]bool)
		s.pending = false

		ctx, cancel := context.WithCancel(s.ctx)
		s.cancel = cancel
		s.inflight = changed
		s.mu.Unlock()

		s.run(ctx, changed)
		cancel()

		s.mu.Lock()
		s.cancel = nil
		s.inflight = nil
		s.mu.Unlock()
	}
}

// wait blocks until no build is running or pending. A change scheduled
// while it waits extends the wait.
func (s *scheduler) wait() {
	for {
		s.mu.Lock()
		idle := s.idle
		s.mu.Unlock()
		if idle == nil {
			return
		}
		<-idle
	}
}
