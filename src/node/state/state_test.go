package state

import (
	"sync"
	"testing"
)

func TestGoFuncLimit(t *testing.T) {
	var m Manager

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(WGLIMIT)

	for i := 0; i < WGLIMIT; i++ {
		if !m.GoFunc(func() {
			started.Done()
			<-release
		}) {
			t.Fatalf("goroutine %d should have been launched", i)
		}
	}

	started.Wait()

	if m.GoFunc(func() {}) {
		t.Fatalf("goroutine above WGLIMIT should not be launched")
	}
	if m.Running() != WGLIMIT {
		t.Fatalf("running should be %d, not %d", WGLIMIT, m.Running())
	}

	close(release)
	m.WaitRoutines()

	if m.Running() != 0 {
		t.Fatalf("running should be 0, not %d", m.Running())
	}
	if !m.GoFunc(func() {}) {
		t.Fatalf("goroutine should be launched once others returned")
	}
	m.WaitRoutines()
}

func TestState(t *testing.T) {
	var m Manager

	if m.GetState() != Gossiping {
		t.Fatalf("initial state should be Gossiping, not %s", m.GetState())
	}

	m.SetState(Suspended)
	if m.GetState() != Suspended {
		t.Fatalf("state should be Suspended, not %s", m.GetState())
	}
}
