// Package lock provides PostgreSQL advisory locking for preventing
// concurrent pgrelay runs against the same target.
package lock

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrLockTimeout is returned when lock acquisition times out because
// another instance is holding the lock.
var ErrLockTimeout = errors.New("lock acquisition timed out")

// Common timeout values for lock acquisition (in seconds).
const (
	// TimeoutImmediate returns immediately if the lock cannot be acquired (no wait).
	TimeoutImmediate = 0

	// TimeoutShort is suitable for fast-failing duplicate-run detection.
	TimeoutShort = 1

	// TimeoutMedium provides a reasonable wait for transient conflicts.
	TimeoutMedium = 10

	// TimeoutLong allows extended waiting for lock acquisition.
	TimeoutLong = 60

	// TimeoutInfinite waits indefinitely until the lock is acquired.
	TimeoutInfinite = -1
)

// pollInterval is how often a bounded-timeout acquire retries
// pg_try_advisory_lock while waiting.
const pollInterval = 200 * time.Millisecond

// AdvisoryLock wraps a PostgreSQL session-level advisory lock
// (pg_try_advisory_lock/pg_advisory_unlock). Advisory locks are scoped to
// the backend connection that took them, so the lock pins a single
// connection out of the pool for as long as it's held.
type AdvisoryLock struct {
	pool     *pgxpool.Pool
	conn     *pgxpool.Conn
	lockKey  int64
	lockName string
	held     bool
}

// NewAdvisoryLock creates a new advisory lock with the given name. The lock
// is not acquired until AcquireLock is called.
func NewAdvisoryLock(pool *pgxpool.Pool, lockName string) *AdvisoryLock {
	return &AdvisoryLock{
		pool:     pool,
		lockName: lockName,
		lockKey:  lockKeyFromName(lockName),
	}
}

// lockKeyFromName hashes a lock name down to the bigint key
// pg_try_advisory_lock expects; the hash's bit pattern reinterprets cleanly
// as a signed int64.
func lockKeyFromName(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// AcquireLock attempts to acquire the advisory lock, polling
// pg_try_advisory_lock every pollInterval until timeoutSeconds elapses.
// timeoutSeconds may be TimeoutImmediate (a single try) or TimeoutInfinite
// (wait until ctx is cancelled). Returns true if the lock was acquired,
// false on timeout.
func (a *AdvisoryLock) AcquireLock(ctx context.Context, timeoutSeconds int) (bool, error) {
	if a.held {
		return true, nil
	}

	if a.conn == nil {
		conn, err := a.pool.Acquire(ctx)
		if err != nil {
			return false, fmt.Errorf("acquire connection for lock %q: %w", a.lockName, err)
		}
		a.conn = conn
	}

	var deadline time.Time
	if timeoutSeconds > 0 {
		deadline = time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	}

	for {
		var acquired bool
		err := a.conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", a.lockKey).Scan(&acquired)
		if err != nil {
			a.releaseConn()
			return false, fmt.Errorf("pg_try_advisory_lock(%q): %w", a.lockName, err)
		}
		if acquired {
			a.held = true
			return true, nil
		}
		if timeoutSeconds == TimeoutImmediate {
			a.releaseConn()
			return false, nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			a.releaseConn()
			return false, nil
		}

		select {
		case <-ctx.Done():
			a.releaseConn()
			return false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// ReleaseLock releases the advisory lock, returning the pinned connection
// to the pool. Returns true if the lock was released, false if it was not held.
func (a *AdvisoryLock) ReleaseLock(ctx context.Context) (bool, error) {
	if !a.held {
		return false, nil
	}

	var released bool
	err := a.conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", a.lockKey).Scan(&released)
	a.held = false
	a.releaseConn()
	if err != nil {
		return false, fmt.Errorf("pg_advisory_unlock(%q): %w", a.lockName, err)
	}
	return released, nil
}

// releaseConn returns the pinned connection to the pool, if any is held.
func (a *AdvisoryLock) releaseConn() {
	if a.conn != nil {
		a.conn.Release()
		a.conn = nil
	}
}

// IsHeld returns true if this lock is currently held by this instance.
func (a *AdvisoryLock) IsHeld() bool {
	return a.held
}

// LockName returns the name of the advisory lock.
func (a *AdvisoryLock) LockName() string {
	return a.lockName
}

// TryAcquire attempts to acquire the lock immediately without waiting.
func (a *AdvisoryLock) TryAcquire(ctx context.Context) (bool, error) {
	return a.AcquireLock(ctx, TimeoutImmediate)
}

// AcquireOrFail attempts to acquire the lock with TimeoutShort, returning
// ErrLockTimeout if another instance is holding it.
func (a *AdvisoryLock) AcquireOrFail(ctx context.Context) error {
	acquired, err := a.AcquireLock(ctx, TimeoutShort)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}
	return nil
}

// GenerateRunLockName creates a consistent lock name for a pgrelay run.
// Lock names follow the format: "pgrelay:run:{name}".
func GenerateRunLockName(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)

	return fmt.Sprintf("pgrelay:run:%s", sanitized)
}

// NewRunLock creates a new advisory lock for a named pgrelay run (e.g. a
// rule-file name), using GenerateRunLockName for consistent naming.
func NewRunLock(pool *pgxpool.Pool, name string) *AdvisoryLock {
	return NewAdvisoryLock(pool, GenerateRunLockName(name))
}

// IsRunInProgress checks whether a named run's lock is currently held by
// trying to acquire it immediately and releasing it again if successful.
// Not atomic: the run's state could change immediately after this returns.
func IsRunInProgress(ctx context.Context, pool *pgxpool.Pool, name string) (bool, error) {
	l := NewRunLock(pool, name)

	acquired, err := l.TryAcquire(ctx)
	if err != nil {
		return false, fmt.Errorf("check run %q lock: %w", name, err)
	}
	if acquired {
		if _, releaseErr := l.ReleaseLock(ctx); releaseErr != nil {
			return false, fmt.Errorf("release probe lock for run %q: %w", name, releaseErr)
		}
		return false, nil
	}

	return true, nil
}

// WithLock executes fn while holding the advisory lock, releasing it
// afterward even if fn panics.
func (a *AdvisoryLock) WithLock(ctx context.Context, timeoutSeconds int, fn func() error) error {
	acquired, err := a.AcquireLock(ctx, timeoutSeconds)
	if err != nil {
		return fmt.Errorf("acquire lock %q: %w", a.lockName, err)
	}
	if !acquired {
		return fmt.Errorf("%w: lock %q is held by another instance", ErrLockTimeout, a.lockName)
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = a.ReleaseLock(releaseCtx)
	}()

	return fn()
}

// WithRunLock executes fn while holding a named run's advisory lock,
// acquired with TimeoutShort.
func WithRunLock(ctx context.Context, pool *pgxpool.Pool, name string, fn func() error) error {
	l := NewRunLock(pool, name)
	return l.WithLock(ctx, TimeoutShort, fn)
}
