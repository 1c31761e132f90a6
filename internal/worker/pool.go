// Package worker runs report calculations on a bounded pool of goroutines.
package worker

import (
	"errors"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrPoolBusy is returned when every worker is occupied. Work is never
// queued; the caller decides whether to retry later.
var ErrPoolBusy = errors.New("worker pool busy")

// Pool limits how many calculations run at once.
type Pool struct {
	group   errgroup.Group
	size    int
	running atomic.Int64
}

// NewPool creates a pool of size workers. size must be positive.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{size: size}
	p.group.SetLimit(size)
	return p
}

// TrySubmit starts fn on a free worker, or returns ErrPoolBusy at once.
func (p *Pool) TrySubmit(fn func()) error {
	ok := p.group.TryGo(func() error {
		p.running.Add(1)
		defer p.running.Add(-1)
		fn()
		return nil
	})
	if !ok {
		return ErrPoolBusy
	}
	return nil
}

// Wait blocks until every started job has returned.
func (p *Pool) Wait() {
	_ = p.group.Wait()
}

func (p *Pool) Size() int { return p.size }

// Running returns the number of jobs currently executing.
func (p *Pool) Running() int { return int(p.running.Load()) }
