package worker

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestPool_RejectsWhenFull(t *testing.T) {
	p := NewPool(2)
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)

	for i := 0; i < 2; i++ {
		if err := p.TrySubmit(func() {
			started.Done()
			<-release
		}); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	started.Wait()

	if err := p.TrySubmit(func() {}); !errors.Is(err, ErrPoolBusy) {
		t.Fatalf("expected ErrPoolBusy, got %v", err)
	}
	if got := p.Running(); got != 2 {
		t.Fatalf("Running() = %d, want 2", got)
	}

	close(release)
	p.Wait()

	var ran atomic.Bool
	if err := p.TrySubmit(func() { ran.Store(true) }); err != nil {
		t.Fatalf("submit after drain: %v", err)
	}
	p.Wait()
	if !ran.Load() {
		t.Fatalf("job did not run")
	}
}

func TestNewPool_MinimumSize(t *testing.T) {
	if got := NewPool(0).Size(); got != 1 {
		t.Fatalf("Size() = %d, want 1", got)
	}
}
