// Package keylock hands out one exclusive, bounded-wait slot per string key.
// Slots for different keys never contend; idle slots are dropped.
package keylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SscSPs/student_ledger/internal/apperrors"
	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when the slot could not be acquired before the deadline.
var ErrTimeout = errors.New("keylock: timed out waiting for key")

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// Locker is safe for concurrent use. The zero value is not usable; call New.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

func New() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Acquire blocks until the slot for key is free. A positive timeout bounds the wait.
// A deadline, whether from timeout or ctx, yields ErrTimeout; cancellation of ctx
// yields ctx.Err(). On success release must be called exactly once; extra calls are ignored.
func (l *Locker) Acquire(ctx context.Context, key string, timeout time.Duration) (release func(), err error) {
	s := l.ref(key)

	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := s.sem.Acquire(waitCtx, 1); err != nil {
		l.unref(key, s)
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			l.unref(key, s)
		})
	}, nil
}

// Len reports how many keys currently have holders or waiters.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Locker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// AsLedgerError converts an Acquire failure into the application error taxonomy.
func AsLedgerError(err error, key string, waited time.Duration) error {
	if errors.Is(err, ErrTimeout) {
		return &apperrors.ConcurrencyTimeoutError{Key: key, Waited: waited}
	}
	return err
}
