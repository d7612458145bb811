package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Provider errors. Callers in the engine only distinguish malformed output
// (ErrInvalidResponse) from everything else; the retry layer uses the
// finer split below.

// ErrRateLimit is a 429 or quota rejection from the generation backend.
type ErrRateLimit struct {
	RetryAfter time.Duration // zero when the backend gave no hint
	Err        error
}

func (e *ErrRateLimit) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("text generation rate limited, retry in %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("text generation rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse is output that could not be decoded into the requested
// quiz or grading shape. Schema names the shape when known.
type ErrInvalidResponse struct {
	Schema  string
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	if e.Schema != "" {
		return fmt.Sprintf("malformed %s output: %v", e.Schema, e.Err)
	}
	return fmt.Sprintf("malformed generation output: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable covers transport failures and 5xx answers.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err == nil {
		return "text generation backend unavailable"
	}
	return fmt.Sprintf("text generation backend unavailable: %v", e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded means structured output was cut off at Limit tokens.
// Asking again with the same budget gives the same truncation.
type ErrMaxTokensExceeded struct {
	Limit   int
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("generation truncated at %d tokens", e.Limit)
	}
	return "generation truncated at max tokens"
}

type retryClass int

const (
	retryNever   retryClass = iota
	retryOnce               // malformed output: one fresh sample may parse
	retryBackoff            // transient backend trouble
)

func classify(err error) retryClass {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retryNever
	}
	var maxTok *ErrMaxTokensExceeded
	if errors.As(err, &maxTok) {
		return retryNever
	}
	var inv *ErrInvalidResponse
	if errors.As(err, &inv) {
		return retryOnce
	}
	return retryBackoff
}
