package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const (
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultMultiplier     = 2.0
	defaultMaxAttempts    = 3
	defaultJitterFraction = 0.30
	defaultSnippetLimit   = 200
)

type Sleeper func(ctx context.Context, d time.Duration) error
type NowFunc func() time.Time
type RandFunc func() float64

// Policy controls backoff for transient HTTP failures.
type Policy struct {
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	Multiplier     float64
	MaxAttempts    int
	JitterFraction float64
	SnippetLimit   int
	Sleep          Sleeper
	Now            NowFunc
	Rand           RandFunc
}

func DefaultPolicy() Policy {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return Policy{
		BaseDelay:      defaultBaseDelay,
		MaxDelay:       defaultMaxDelay,
		Multiplier:     defaultMultiplier,
		MaxAttempts:    defaultMaxAttempts,
		JitterFraction: defaultJitterFraction,
		SnippetLimit:   defaultSnippetLimit,
		Sleep:          defaultSleep,
		Now:            time.Now,
		Rand:           rng.Float64,
	}
}

// HTTPStatusError is a retryable upstream status.
type HTTPStatusError struct {
	StatusCode  int
	BodySnippet string
}

func (e *HTTPStatusError) Error() string {
	if e.BodySnippet == "" {
		return fmt.Sprintf("transient status %d", e.StatusCode)
	}
	return fmt.Sprintf("transient status %d: %s", e.StatusCode, e.BodySnippet)
}

// ExhaustedError wraps the last transient failure once attempts run out.
type ExhaustedError struct {
	Cause    error
	Attempts int
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry attempts exhausted after %d: %v", e.Attempts, e.Cause)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Cause
}

// DoHTTP runs do until it returns a non-retryable result or attempts are
// exhausted. Retryable: 408/429/5xx statuses and transient network errors.
// A Retry-After header, when present, overrides the computed backoff.
// Non-retryable responses are returned as-is; interpreting them is the
// caller's job.
func DoHTTP(ctx context.Context, policy Policy, logger *slog.Logger, do func(ctx context.Context) (*http.Response, []byte, error)) (*http.Response, []byte, error) {
	policy = withDefaults(policy)

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		resp, body, err := do(ctx)
		if err != nil {
			if !isRetryableNetErr(ctx, err) {
				return resp, body, err
			}
			if attempt == policy.MaxAttempts {
				return resp, body, &ExhaustedError{Cause: err, Attempts: attempt}
			}
			delay := policy.jitterDelay(policy.backoffDelay(attempt))
			logRetry(logger, attempt+1, policy.MaxAttempts, 0, err.Error(), delay)
			if err := policy.Sleep(ctx, delay); err != nil {
				return nil, nil, err
			}
			continue
		}

		if resp == nil {
			return nil, nil, errors.New("nil response from http client")
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, body, nil
		}

		snippet := bodySnippet(body, policy.SnippetLimit)
		if attempt == policy.MaxAttempts {
			return resp, body, &ExhaustedError{
				Cause:    &HTTPStatusError{StatusCode: resp.StatusCode, BodySnippet: snippet},
				Attempts: attempt,
			}
		}

		delay, usedRetryAfter := policy.retryAfterDelay(resp.Header)
		if !usedRetryAfter {
			delay = policy.jitterDelay(policy.backoffDelay(attempt))
		}
		logRetry(logger, attempt+1, policy.MaxAttempts, resp.StatusCode, snippet, delay)
		if err := policy.Sleep(ctx, delay); err != nil {
			return nil, nil, err
		}
	}

	return nil, nil, errors.New("retry attempts exhausted")
}

func withDefaults(p Policy) Policy {
	if p.BaseDelay == 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = defaultMultiplier
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.JitterFraction == 0 {
		p.JitterFraction = defaultJitterFraction
	}
	if p.SnippetLimit == 0 {
		p.SnippetLimit = defaultSnippetLimit
	}
	if p.Sleep == nil {
		p.Sleep = defaultSleep
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.Rand == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		p.Rand = rng.Float64
	}
	return p
}

func (p Policy) backoffDelay(retryIndex int) time.Duration {
	if retryIndex < 1 {
		retryIndex = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retryIndex-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}

func (p Policy) jitterDelay(delay time.Duration) time.Duration {
	if delay <= 0 || p.JitterFraction <= 0 {
		return delay
	}
	// Percentage jitter: +/- JitterFraction to reduce thundering herd.
	factor := 1 + (p.Rand()*2-1)*p.JitterFraction
	adjusted := float64(delay) * factor
	if adjusted < 0 {
		adjusted = 0
	}
	return time.Duration(adjusted)
}

// retryAfterDelay honors the Retry-After header, capped at MaxDelay.
func (p Policy) retryAfterDelay(header http.Header) (time.Duration, bool) {
	value := strings.TrimSpace(header.Get("Retry-After"))
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, true
		}
		return minDuration(time.Duration(seconds)*time.Second, p.MaxDelay), true
	}
	if parsed, err := http.ParseTime(value); err == nil {
		delay := parsed.Sub(p.Now())
		if delay < 0 {
			delay = 0
		}
		return minDuration(delay, p.MaxDelay), true
	}
	return 0, false
}

func defaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableNetErr(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection reset")
}

func logRetry(logger *slog.Logger, attempt, maxAttempts, status int, detail string, delay time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("retrying request",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", maxAttempts),
		slog.Int("status", status),
		slog.String("detail", detail),
		slog.Duration("retry_in", delay))
}

func bodySnippet(body []byte, limit int) string {
	if len(body) == 0 || limit <= 0 {
		return ""
	}
	if len(body) <= limit {
		return string(body)
	}
	return string(body[:limit])
}

func minDuration(a, b time.Duration) time.Duration {
	if a <= b {
		return a
	}
	return b
}
