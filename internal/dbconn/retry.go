package dbconn

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	maxRetries  = 3
	retryDelay  = time.Second
)

// WithRetry runs fn up to maxRetries times in total, with a fixed retryDelay
// between attempts, while fn fails with a connection-class error. Any other
// error, or context cancellation, is returned immediately. After exhausting
// retries the last error is returned unwrapped-further.
func WithRetry(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !IsConnectionError(lastErr) {
			return lastErr
		}
		if attempt == maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return lastErr
}

// IsConnectionError reports whether err looks like a transient
// connection-class failure worth retrying: network errors, pgconn's own
// connection-closed/timeout markers.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	return false
}
