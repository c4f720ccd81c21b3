package domain

import (
	"context"
	"sync"
)

// Completion is a one-shot signal carrying a job Result. Fire takes effect
// once; any number of goroutines may wait on it. A nil *Completion is valid:
// it ignores Fire, never reports a Result and Wait fails with ErrNoCompletion.
type Completion struct {
	once sync.Once
	done chan struct{}
	res  Result
}

func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Fire stores res and releases waiters. It reports whether this call was the
// one that fired.
func (c *Completion) Fire(res Result) bool {
	if c == nil {
		return false
	}

	fired := false
	c.once.Do(func() {
		c.res = res
		close(c.done)
		fired = true
	})
	return fired
}

// Done is closed once the completion fires. It is nil for a nil Completion.
func (c *Completion) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.done
}

func (c *Completion) Result() (Result, bool) {
	if c == nil {
		return Result{}, false
	}

	select {
	case <-c.done:
		return c.res, true
	default:
		return Result{}, false
	}
}

func (c *Completion) Wait(ctx context.Context) (Result, error) {
	if c == nil {
		return Result{}, ErrNoCompletion
	}

	select {
	case <-c.done:
		return c.res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
