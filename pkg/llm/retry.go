package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aretw0/canopy/pkg/ports"
)

// RetryPolicy bounds the transient-failure retry loop around one model
// call. Only rate-limit, timeout, connection, and server-overload failure
// classes are retried; everything else propagates immediately.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy mirrors the provider guidance: three attempts with
// exponential backoff and jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

type retryClient struct {
	inner  ports.ModelClient
	policy RetryPolicy
}

// WithRetry wraps a ModelClient with the given retry policy.
func WithRetry(inner ports.ModelClient, policy RetryPolicy) ports.ModelClient {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &retryClient{inner: inner, policy: policy}
}

func (r *retryClient) Invoke(ctx context.Context, prompt string) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.policy.InitialInterval
	b.MaxInterval = r.policy.MaxInterval
	// RandomizationFactor stays at the backoff default, giving jitter.

	var out string
	op := func() error {
		var err error
		out, err = r.inner.Invoke(ctx, prompt)
		if err == nil {
			return nil
		}
		if !Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithMaxRetries(
		backoff.WithContext(b, ctx), uint64(r.policy.MaxAttempts-1)))
	return out, err
}

// transientMarkers are provider failure classes worth retrying: rate
// limits, timeouts, connection drops, and server overload.
var transientMarkers = []string{
	"rate limit",
	"rate_limit",
	"429",
	"timeout",
	"timed out",
	"connection",
	"overloaded",
	"internal server error",
	"500",
	"502",
	"503",
	"529",
}

// Transient reports whether an error belongs to a retryable failure class.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
