package retry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type recordSleeper struct {
	delays []time.Duration
}

func (s *recordSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func doRequest(t *testing.T, client *http.Client, url string) func(ctx context.Context) (*http.Response, []byte, error) {
	t.Helper()
	return func(ctx context.Context) (*http.Response, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return nil, nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return resp, nil, err
		}
		return resp, body, nil
	}
}

func testPolicy(sleep *recordSleeper, attempts int, rnd float64) Policy {
	return Policy{
		BaseDelay:      500 * time.Millisecond,
		MaxDelay:       8 * time.Second,
		Multiplier:     2.0,
		MaxAttempts:    attempts,
		JitterFraction: 0.30,
		SnippetLimit:   200,
		Sleep:          sleep.Sleep,
		Now:            time.Now,
		Rand:           func() float64 { return rnd },
	}
}

func TestRetry429WithJitterRange(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limit"))
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	_, _, err := DoHTTP(context.Background(), testPolicy(sleep, 2, 0.0), nil, doRequest(t, server.Client(), server.URL))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(sleep.delays) != 1 {
		t.Fatalf("expected 1 sleep, got %d", len(sleep.delays))
	}
	delay := sleep.delays[0]
	if delay < 350*time.Millisecond || delay > 650*time.Millisecond {
		t.Fatalf("delay out of jitter range: %s", delay)
	}
}

func TestRetry429WithRetryAfterSeconds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limit"))
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	_, _, err := DoHTTP(context.Background(), testPolicy(sleep, 2, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
	if len(sleep.delays) != 1 {
		t.Fatalf("expected 1 sleep, got %d", len(sleep.delays))
	}
	if sleep.delays[0] != 2*time.Second {
		t.Fatalf("expected retry-after 2s, got %s", sleep.delays[0])
	}
}

func TestRetry503ThenSuccess(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	resp, body, err := DoHTTP(context.Background(), testPolicy(sleep, 3, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if string(body) != "ok" {
		t.Fatalf("expected body ok, got %q", string(body))
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestNonRetryableStatusReturnedAsIs(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	resp, body, err := DoHTTP(context.Background(), testPolicy(sleep, 3, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if err != nil {
		t.Fatalf("non-retryable status must not be an error here, got %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	if string(body) != "denied" {
		t.Fatalf("expected body denied, got %q", string(body))
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
	if len(sleep.delays) != 0 {
		t.Fatalf("expected no sleeps, got %d", len(sleep.delays))
	}
}

func TestExhaustedErrorWrapsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	sleep := &recordSleeper{}
	_, _, err := DoHTTP(context.Background(), testPolicy(sleep, 3, 0.5), nil, doRequest(t, server.Client(), server.URL))

	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", exhausted.Attempts)
	}
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected wrapped 502 status error, got %v", err)
	}
}

func TestCanceledContextStopsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sleep := &recordSleeper{}
	_, _, err := DoHTTP(ctx, testPolicy(sleep, 3, 0.5), nil, doRequest(t, server.Client(), server.URL))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
