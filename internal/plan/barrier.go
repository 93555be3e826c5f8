package plan

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultBarrierTimeout bounds how long a dependent may wait on a single
// barrier. Matches the wait-condition timeout used by the upstream stack
// templates.
const DefaultBarrierTimeout = time.Hour

// Barrier is a one-shot synchronization signal marking a document's durable
// storage as complete. It is satisfied exactly once with the confirmed
// storage location; satisfying or failing an already-settled barrier is a
// no-op, so signals are idempotent.
type Barrier struct {
	name string
	once sync.Once
	done chan struct{}

	location string
	err      error
}

// NewBarrier creates an unsatisfied barrier.
func NewBarrier(name string) *Barrier {
	return &Barrier{
		name: name,
		done: make(chan struct{}),
	}
}

// Name returns the barrier's logical name.
func (b *Barrier) Name() string {
	return b.name
}

// Satisfy settles the barrier with the confirmed storage location.
func (b *Barrier) Satisfy(location string) {
	b.once.Do(func() {
		b.location = location
		close(b.done)
	})
}

// Fail settles the barrier as permanently unsatisfiable.
func (b *Barrier) Fail(cause error) {
	b.once.Do(func() {
		if cause == nil {
			cause = errors.New("upload failed")
		}
		b.err = cause
		close(b.done)
	})
}

// Settled reports whether the barrier has been satisfied or failed.
func (b *Barrier) Settled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the barrier settles, the bounded wait elapses, or the
// context is cancelled. On success it returns the confirmed location.
func (b *Barrier) Wait(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultBarrierTimeout
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-b.done:
		if b.err != nil {
			return "", &BarrierUnsatisfiedError{Barrier: b.name, Cause: b.err}
		}
		return b.location, nil
	case <-timer.C:
		return "", &UploadTimeoutError{Barrier: b.name, Timeout: timeout}
	case <-ctx.Done():
		return "", &BarrierUnsatisfiedError{Barrier: b.name, Cause: ctx.Err()}
	}
}
