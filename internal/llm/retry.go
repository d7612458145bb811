package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/lazypower/sparkcoach/internal/logger"
)

// RetryConfig bounds retries of transient generation failures.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
	// PurposeAttempts caps MaxAttempts for calls tagged with WithPurpose.
	PurposeAttempts map[string]int
}

// DefaultRetryConfig tries quiz calls three times. Nudge copy gets two
// attempts since the sweep falls back to the template message anyway.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialWait:     time.Second,
		MaxWait:         10 * time.Second,
		Multiplier:      2,
		PurposeAttempts: map[string]int{PurposeNudge: 2},
	}
}

func (c RetryConfig) attempts(purpose string) int {
	n := c.MaxAttempts
	if capN, ok := c.PurposeAttempts[purpose]; ok && capN < n {
		n = capN
	}
	return max(n, 1)
}

// RetryProvider re-sends requests that failed for transient reasons.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
	log    *logger.Logger
}

// WithRetry wraps p with retries. log may be nil.
func WithRetry(p Provider, cfg RetryConfig, log *logger.Logger) Provider {
	if log == nil {
		log = logger.Nop()
	}
	return &RetryProvider{inner: p, config: cfg, log: log.With("component", "llm")}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	purpose := PurposeFrom(ctx)
	attempts := r.config.attempts(purpose)
	malformedSeen := false

	for attempt := 1; ; attempt++ {
		resp, err := r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}

		switch classify(err) {
		case retryNever:
			return nil, err
		case retryOnce:
			if malformedSeen {
				return nil, err
			}
			malformedSeen = true
		}
		if attempt >= attempts {
			return nil, err
		}

		wait := r.backoff(attempt, err)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			// The caller would time out before the next attempt starts.
			return nil, err
		}
		r.log.Debug("retrying generation", "purpose", purpose, "attempt", attempt, "wait", wait, "error", err)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

// backoff returns the wait before attempt+1. A rate limit hint wins over
// the exponential schedule; otherwise ±20% jitter is applied.
func (r *RetryProvider) backoff(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}
	wait := float64(r.config.InitialWait)
	for i := 1; i < attempt; i++ {
		wait *= r.config.Multiplier
		if wait >= float64(r.config.MaxWait) {
			break
		}
	}
	wait = min(wait, float64(r.config.MaxWait))
	wait *= 0.8 + 0.4*rand.Float64()
	return time.Duration(wait)
}
