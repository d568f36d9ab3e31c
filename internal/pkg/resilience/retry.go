package resilience

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"strings"
	"time"
)

type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	RetryIf    func(error) bool
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: 3,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   5 * time.Second,
		RetryIf:    IsTransient,
	}
}

// PaymentRetryOptions retries only transport failures and keeps the attempt
// budget small so a flaky gateway cannot be double-charged.
func PaymentRetryOptions() RetryOptions {
	return RetryOptions{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   10 * time.Second,
		RetryIf:    IsTransportError,
	}
}

type Retryer struct {
	opts RetryOptions
}

func NewRetryer(opts RetryOptions) *Retryer {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 5 * time.Second
	}
	if opts.RetryIf == nil {
		opts.RetryIf = IsTransient
	}
	return &Retryer{opts: opts}
}

// Do runs op, retrying with exponential backoff and jitter while the retry
// condition holds and the attempt budget is not exhausted.
func (r *Retryer) Do(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.opts.MaxRetries || !r.opts.RetryIf(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffDelay(r.opts.BaseDelay, r.opts.MaxDelay, attempt)):
		}
	}
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	d := base << uint(attempt)
	if d <= 0 || d > max {
		return max
	}
	d += time.Duration(rand.Int63n(int64(base)))
	if d > max {
		return max
	}
	return d
}

var transientSignatures = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"broken pipe",
	"temporarily unavailable",
	"service unavailable",
	"rate limit",
	"too many requests",
	"bad gateway",
	"internal server error",
}

var transportSignatures = []string{
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"broken pipe",
	"unexpected eof",
	"no such host",
}

// IsTransient matches network, timeout, rate-limit and 5xx-style failures.
func IsTransient(err error) bool {
	return matchesAny(err, transientSignatures)
}

// IsTransportError matches pure transport failures only; business-rule
// rejections from a dependency never satisfy it.
func IsTransportError(err error) bool {
	return matchesAny(err, transportSignatures)
}

func matchesAny(err error, signatures []string) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range signatures {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
