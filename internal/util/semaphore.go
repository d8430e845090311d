package util

import "context"

// Semaphore is a counting semaphore backed by a buffered channel. The
// scheduler's usages elsewhere in the ecosystem call it as NewSemaphore(n)
// with Acquire/Release, but no concrete implementation shipped in the
// retrieved reference material; this one is written from scratch against
// that calling convention, not adapted from an existing file.
type Semaphore struct {
	slots chan struct{}
}

// NewSemaphore constructs a Semaphore with n permits. n <= 0 means
// unlimited: TryAcquire and Acquire always succeed and Release is a no-op.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{slots: make(chan struct{}, n)}
}

// Acquire blocks until a permit is available.
func (s *Semaphore) Acquire() {
	if s.slots == nil {
		return
	}
	s.slots <- struct{}{}
}

// AcquireCtx blocks until a permit is available or ctx is done, whichever
// comes first, returning ctx.Err() in the latter case so a waiting caller
// can abandon the operation instead of starting it late.
func (s *Semaphore) AcquireCtx(ctx context.Context) error {
	if s.slots == nil {
		return ctx.Err()
	}
	select {
	case s.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire acquires a permit without blocking, reporting whether it
// succeeded.
func (s *Semaphore) TryAcquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	if s.slots == nil {
		return
	}
	<-s.slots
}
