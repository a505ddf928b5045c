package dispatch

import "context"

// Pool is a counting semaphore bounding in-flight calls to one provider.
// A single Pool per provider is shared by every job in the process, so the
// ceiling holds no matter how many jobs run concurrently.
type Pool struct {
	slots chan struct{}
}

// NewPool builds a pool with the given capacity. Sizes below one are
// clamped to one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{slots: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or the context ends.
func (p *Pool) Acquire(ctx context.Context) error {
	select {
	case p.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	<-p.slots
}

// Size reports the pool capacity.
func (p *Pool) Size() int {
	return cap(p.slots)
}

// InUse reports how many slots are currently held.
func (p *Pool) InUse() int {
	return len(p.slots)
}
