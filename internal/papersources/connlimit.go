package papersources

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ConnLimiter caps the number of simultaneously outstanding HTTP requests
// across every source sharing it. A slot is held from just before a request
// is sent until its response body is closed.
//
// A nil *ConnLimiter imposes no limit.
type ConnLimiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewConnLimiter creates a limiter with n slots. n <= 0 returns nil (no limit).
func NewConnLimiter(n int) *ConnLimiter {
	if n <= 0 {
		return nil
	}
	return &ConnLimiter{
		sem:      semaphore.NewWeighted(int64(n)),
		capacity: int64(n),
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *ConnLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	cur := l.inFlight.Add(1)
	for {
		p := l.peak.Load()
		if cur <= p || l.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	return nil
}

// Release frees a slot taken by Acquire.
func (l *ConnLimiter) Release() {
	if l == nil {
		return
	}
	l.inFlight.Add(-1)
	l.sem.Release(1)
}

// Capacity returns the number of slots, 0 when unlimited.
func (l *ConnLimiter) Capacity() int64 {
	if l == nil {
		return 0
	}
	return l.capacity
}

// InFlight returns the number of slots currently held.
func (l *ConnLimiter) InFlight() int64 {
	if l == nil {
		return 0
	}
	return l.inFlight.Load()
}

// Peak returns the highest number of slots held at once.
func (l *ConnLimiter) Peak() int64 {
	if l == nil {
		return 0
	}
	return l.peak.Load()
}

// releasingBody releases a limiter slot when the body is closed.
type releasingBody struct {
	io.ReadCloser
	once    sync.Once
	release func()
}

func (b *releasingBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.release)
	return err
}
