package dsclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryPolicy decides whether a completed attempt should be retried and how
// long to wait first. attempt is 1-based and counts attempts already made.
type RetryPolicy interface {
	ShouldRetry(attempt int, resp *http.Response, err error) (bool, time.Duration)
}

// RetryPolicyFunc adapts a function to the RetryPolicy interface.
type RetryPolicyFunc func(attempt int, resp *http.Response, err error) (bool, time.Duration)

// ShouldRetry implements the RetryPolicy interface.
func (f RetryPolicyFunc) ShouldRetry(attempt int, resp *http.Response, err error) (bool, time.Duration) {
	return f(attempt, resp, err)
}

// BackoffPolicy retries transient failures (transport errors, 5xx, 429) with
// exponential backoff and jitter, capped at MaxAttempts total attempts.
// A Retry-After header on 429/503 responses overrides the computed delay.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the policy applied when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return BackoffPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    16 * time.Second,
	}
}

// ShouldRetry implements the RetryPolicy interface.
func (p BackoffPolicy) ShouldRetry(attempt int, resp *http.Response, err error) (bool, time.Duration) {
	if attempt >= p.MaxAttempts {
		return false, 0
	}
	switch {
	case err != nil:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, 0
		}
		return true, p.delay(attempt, nil)
	case resp == nil:
		return false, 0
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return true, p.delay(attempt, resp)
	default:
		return false, 0
	}
}

func (p BackoffPolicy) delay(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if after := resp.Header.Get("Retry-After"); after != "" {
			if secs, err := strconv.Atoi(after); err == nil && secs > 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	// Jitter of up to half the delay avoids synchronized waves of retries.
	return d + time.Duration(rand.Int63n(int64(d/2)+1))
}

// transient reports whether a status class would have been retried.
func transient(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// roundTrip drives one request through the configured retry state machine:
// Attempt, Wait, Attempt, ... until a non-transient outcome, the attempt
// budget, or context cancellation.
func (c *Client) roundTrip(ctx context.Context, req *http.Request) (*http.Response, error) {
	policy := c.retryPolicy
	if policy == nil {
		return c.httpClient.Do(req)
	}

	attempt := 0
	for {
		if attempt > 0 {
			if err := rewindBody(req); err != nil {
				return nil, err
			}
		}
		attempt++

		resp, err := c.httpClient.Do(req)
		retry, delay := policy.ShouldRetry(attempt, resp, err)
		if !retry {
			if err != nil {
				if attempt > 1 {
					return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, err)
				}
				return nil, err
			}
			if attempt > 1 && transient(resp.StatusCode) {
				// The failure class was retried and persisted; surface it as
				// budget exhaustion carrying the final error envelope.
				return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, decodeAPIError(resp))
			}
			return resp, nil
		}

		if resp != nil {
			drain(resp)
		}
		if c.logger != nil {
			c.logger.Debugf("dsclient: transient failure, retrying in %s (attempt %d)", delay, attempt)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}
