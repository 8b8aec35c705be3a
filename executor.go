package llmtools

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Executor runs n independent tasks and returns when all of them are done.
// Tasks never fail: each one writes its own result slot.
//
// All executors share memory with the caller. Tools dispatched through a
// parallel executor run concurrently and must be safe for concurrent use.
type Executor interface {
	Execute(ctx context.Context, n int, task func(ctx context.Context, i int))
}

type sequential struct{}

// Sequential returns an Executor running tasks one after another in order.
func Sequential() Executor { return sequential{} }

func (sequential) Execute(ctx context.Context, n int, task func(context.Context, int)) {
	for i := range n {
		task(ctx, i)
	}
}

// Pool runs tasks concurrently, at most limit at a time.
type Pool struct {
	limit int
}

// NewPool returns a Pool. limit <= 0 means no limit.
func NewPool(limit int) *Pool {
	return &Pool{limit: limit}
}

// Execute starts every task and waits for all of them.
func (p *Pool) Execute(ctx context.Context, n int, task func(context.Context, int)) {
	var g errgroup.Group
	if p.limit > 0 {
		g.SetLimit(p.limit)
	}
	for i := range n {
		g.Go(func() error {
			task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

var (
	_ Executor = sequential{}
	_ Executor = (*Pool)(nil)
)
