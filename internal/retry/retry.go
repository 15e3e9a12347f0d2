package retry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"time"
)

// Options controls the backoff schedule. MaxRetries is the number of
// additional attempts after the first call.
type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultOptions mirrors the schedule used by every network-facing stage.
func DefaultOptions() Options {
	return Options{MaxRetries: 3, BaseDelay: 1 * time.Second, MaxDelay: 60 * time.Second}
}

func (o Options) normalize() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 1 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 60 * time.Second
	}
	return o
}

// StatusError carries an HTTP status observed from an upstream API, plus a
// server-supplied retry hint when one was present.
type StatusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("http status %d", e.Code)
}

var retryableCodes = map[int]bool{429: true, 500: true, 502: true, 503: true, 504: true}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool { return retryableCodes[e.Code] }

// TransientError marks any failure the caller knows to be transient, for
// example a provider-specific overloaded signal that does not surface as an
// HTTP status.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient classifies an error as retryable: connection and timeout
// failures, retryable HTTP statuses, and explicit transient wrappers.
// Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"rate limit", "rate_limit", "overloaded", "connection refused", "connection reset", "timeout"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ParseRetryAfter reads the seconds form of a Retry-After header value.
// Malformed or non-positive values mean no hint.
func ParseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// retryAfter extracts a server-supplied wait hint from the error chain.
func retryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	var te *TransientError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		return te.RetryAfter
	}
	return 0
}

// backoffDelay doubles the base delay per attempt, stopping at MaxDelay
// before the doubling can overflow on a huge attempt count.
func backoffDelay(opts Options, attempt int) time.Duration {
	delay := opts.BaseDelay
	for i := 0; i < attempt && delay < opts.MaxDelay; i++ {
		delay *= 2
	}
	if delay > opts.MaxDelay {
		delay = opts.MaxDelay
	}
	return delay
}

// Do invokes fn, retrying transient failures with exponential backoff:
// min(base*2^attempt, max), overridden by a server retry hint when present
// (still bounded by max). Non-transient failures return immediately; on
// exhaustion the last transient failure is returned.
func Do[T any](ctx context.Context, opts Options, logger *log.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	opts = opts.normalize()

	var zero T
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !IsTransient(err) {
			return zero, err
		}
		lastErr = err
		if attempt == opts.MaxRetries {
			break
		}

		delay := backoffDelay(opts, attempt)
		if hint := retryAfter(err); hint > 0 {
			delay = hint
			if delay > opts.MaxDelay {
				delay = opts.MaxDelay
			}
		}
		if logger != nil {
			logger.Printf("retry %d/%d after %v: %v", attempt+1, opts.MaxRetries, delay, err)
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}
