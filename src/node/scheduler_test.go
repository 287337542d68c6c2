package node

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func TestSchedulerRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	interval := 10 * time.Second

	ticks := make(chan struct{}, 10)
	s := NewScheduler(interval, func() { ticks <- struct{}{} }, clock)

	go s.Run()

	for i := 0; i < 3; i++ {
		clock.BlockUntil(1)

		// no run before the interval
		clock.Advance(interval - time.Second)
		select {
		case <-ticks:
			t.Fatalf("run %d happened before the interval", i)
		case <-time.After(10 * time.Millisecond):
		}

		// the jitter is at most half the interval
		clock.Advance(interval)
		select {
		case <-ticks:
		case <-time.After(time.Second):
			t.Fatalf("run %d did not happen", i)
		}
	}

	s.Stop()
	s.Stop()
}

func TestSchedulerNoOverlap(t *testing.T) {
	clock := clockwork.NewFakeClock()
	interval := time.Second

	var running, maxRunning, runs int32
	release := make(chan struct{})
	started := make(chan struct{}, 10)

	s := NewScheduler(interval, func() {
		n := atomic.AddInt32(&running, 1)
		if n > atomic.LoadInt32(&maxRunning) {
			atomic.StoreInt32(&maxRunning, n)
		}
		atomic.AddInt32(&runs, 1)
		started <- struct{}{}
		<-release
		atomic.AddInt32(&running, -1)
	}, clock)

	go s.Run()

	clock.BlockUntil(1)
	clock.Advance(2 * interval)
	<-started

	// the task is still running: time passing does not start another run
	clock.Advance(10 * interval)
	select {
	case <-started:
		t.Fatal("runs should not overlap")
	case <-time.After(20 * time.Millisecond):
	}

	release <- struct{}{}

	clock.BlockUntil(1)
	clock.Advance(2 * interval)
	<-started
	release <- struct{}{}

	clock.BlockUntil(1)
	s.Stop()

	if atomic.LoadInt32(&maxRunning) != 1 {
		t.Fatalf("at most one run at a time, got %d", maxRunning)
	}
	if atomic.LoadInt32(&runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", runs)
	}
}

func TestSchedulerStopBeforeRun(t *testing.T) {
	s := NewScheduler(time.Second, func() {
		t.Fatal("task should not run")
	}, clockwork.NewFakeClock())

	s.Stop()

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return after Stop")
	}
}
