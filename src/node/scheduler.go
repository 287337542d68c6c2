package node

import (
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler runs a task periodically. Every run is delayed by the interval
// plus a random jitter of up to half the interval, so that nodes started
// together do not all originate sessions at the same time. Runs never overlap:
// the next delay starts when the task returns.
type Scheduler struct {
	interval time.Duration
	task     func()
	clock    clockwork.Clock

	sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a Scheduler. A nil clock defaults to the real clock.
func NewScheduler(interval time.Duration, task func(), clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		interval: interval,
		task:     task,
		clock:    clock,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Run blocks, running the task, until Stop is called. It returns immediately
// if the Scheduler is already running or was stopped.
func (s *Scheduler) Run() {
	s.Lock()
	if s.running || s.stopped {
		s.Unlock()
		return
	}
	s.running = true
	s.Unlock()

	defer close(s.doneCh)

	for {
		timer := s.clock.NewTimer(s.nextDelay())
		select {
		case <-timer.Chan():
			s.task()
		case <-s.stopCh:
			timer.Stop()
			return
		}

		select {
		case <-s.stopCh:
			return
		default:
		}
	}
}

// Stop ends Run and waits for the current task, if any, to return. It must not
// be called from the task. It is safe to call Stop more than once, and before
// Run.
func (s *Scheduler) Stop() {
	s.Lock()
	if !s.stopped {
		s.stopped = true
		close(s.stopCh)
	}
	running := s.running
	s.Unlock()

	if running {
		<-s.doneCh
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	if s.interval <= 0 {
		return 0
	}
	jitter := s.interval / 2
	if jitter == 0 {
		return s.interval
	}
	return s.interval + time.Duration(rand.Int63n(int64(jitter)))
}
