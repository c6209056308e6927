package app

import (
	"context"
	"sync"
)

// workerSlot owns the single worker goroutine of a manager. step performs
// one unit of work and reports false when there is nothing left to do or the
// worker was stopped. hasWork is consulted under the slot lock before the
// worker exits so a job enqueued concurrently is never stranded.
type workerSlot struct {
	mu             sync.Mutex
	cancel         context.CancelFunc
	active         bool
	stopping       bool
	restartPending bool

	step    func(ctx context.Context) bool
	hasWork func() bool
	onExit  func(stopped bool)
}

func newWorkerSlot(step func(ctx context.Context) bool, hasWork func() bool, onExit func(stopped bool)) *workerSlot {
	return &workerSlot{step: step, hasWork: hasWork, onExit: onExit}
}

// Start launches the worker unless one is running. A worker that is still
// unwinding after Stop is replaced once it exits.
func (s *workerSlot) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		if s.stopping {
			s.restartPending = true
			return true
		}
		return false
	}
	s.launchLocked()
	return true
}

func (s *workerSlot) launchLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.active = true
	s.stopping = false
	go s.loop(ctx)
}

// Stop cancels the running worker without waiting for it
func (s *workerSlot) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.restartPending = false
	if !s.active || s.stopping {
		return
	}
	s.stopping = true
	s.cancel()
}

// Running reports whether a worker is live and not asked to stop
func (s *workerSlot) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && !s.stopping
}

// Active reports whether a worker goroutine exists, stopping or not
func (s *workerSlot) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *workerSlot) loop(ctx context.Context) {
	for {
		if s.step(ctx) {
			continue
		}
		if exited, stopped := s.tryExit(ctx); exited {
			if s.onExit != nil {
				s.onExit(stopped)
			}
			return
		}
	}
}

func (s *workerSlot) tryExit(ctx context.Context) (exited, stopped bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped = ctx.Err() != nil
	if !stopped && s.hasWork() {
		return false, false
	}

	s.cancel()
	s.active = false
	s.stopping = false
	s.cancel = nil
	if s.restartPending {
		s.restartPending = false
		s.launchLocked()
	}
	return true, stopped
}
