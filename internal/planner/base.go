package planner

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// FailoverReason categorizes why a provider call failed, trimmed to the
// categories the retry policy actually branches on.
type FailoverReason string

const (
	ReasonRateLimit   FailoverReason = "rate_limit"
	ReasonServerError FailoverReason = "server_error"
	ReasonTimeout     FailoverReason = "timeout"
	ReasonAuth        FailoverReason = "auth"
	ReasonUnknown     FailoverReason = "unknown"
)

// IsRetryable reports whether a call that failed for this reason is worth
// retrying.
func (r FailoverReason) IsRetryable() bool {
	switch r {
	case ReasonRateLimit, ReasonServerError, ReasonTimeout:
		return true
	default:
		return false
	}
}

// ProviderError wraps an error returned by a concrete Generator with
// enough context for BaseProvider's retry policy and for callers to
// classify the failure without string-matching.
type ProviderError struct {
	Provider string
	Model    string
	Reason   FailoverReason
	Cause    error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Provider + ": " + e.Cause.Error()
	}
	return e.Provider + ": " + string(e.Reason)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// NewProviderError wraps cause, classifying it via ClassifyError.
func NewProviderError(provider, model string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Model: model, Cause: cause, Reason: ClassifyError(cause)}
}

// ClassifyError inspects err's message for well-known substrings and
// returns the matching FailoverReason.
func ClassifyError(err error) FailoverReason {
	if err == nil {
		return ReasonUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"), strings.Contains(msg, "resource exhausted"):
		return ReasonRateLimit
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"), strings.Contains(msg, "internal server error"):
		return ReasonServerError
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return ReasonTimeout
	case strings.Contains(msg, "401"), strings.Contains(msg, "403"), strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid api key"):
		return ReasonAuth
	default:
		return ReasonUnknown
	}
}

// IsRetryable classifies err and reports whether BaseProvider.Retry should
// attempt another call.
func IsRetryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Reason.IsRetryable()
	}
	return ClassifyError(err).IsRetryable()
}

// BaseProvider holds the retry and client-side rate-limiting configuration
// shared by every concrete Generator.
type BaseProvider struct {
	Name       string
	MaxRetries int
	RetryDelay time.Duration
	limiter    *rate.Limiter
}

// NewBaseProvider returns a BaseProvider with sane defaults and a client
// side rate limiter allowing ratePerSecond requests/sec (burst 1).
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration, ratePerSecond float64) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	var limiter *rate.Limiter
	if ratePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), 1)
	}
	return BaseProvider{Name: name, MaxRetries: maxRetries, RetryDelay: retryDelay, limiter: limiter}
}

// Retry executes op with linear backoff, retrying only while IsRetryable
// classifies the returned error as retryable.
func (b *BaseProvider) Retry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= b.MaxRetries; attempt++ {
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		if err := op(); err == nil {
			return nil
		} else {
			lastErr = err
			if !IsRetryable(err) || attempt >= b.MaxRetries {
				return lastErr
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.RetryDelay * time.Duration(attempt)):
			}
		}
	}
	return lastErr
}

// statusReason maps an HTTP status code to a FailoverReason. None of the
// providers in this package call it; they classify errors by message via
// NewProviderError.
func statusReason(status int) FailoverReason {
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ReasonAuth
	case status >= 500:
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}
