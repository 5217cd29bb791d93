package alert

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
	defaultTimeout  = 5 * time.Second
	maxWait         = 30 * time.Second
)

func (c Config) attempts() int {
	if c.Attempts > 0 {
		return c.Attempts
	}
	return defaultAttempts
}

func (c Config) backoff(attempt int) time.Duration {
	d := c.Backoff
	if d <= 0 {
		d = defaultBackoff
	}
	d <<= attempt - 1
	if d > maxWait || d <= 0 {
		return maxWait
	}
	return d
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultTimeout
}

// Send posts event to one webhook. Transport errors, 429 and 5xx are
// retried up to cfg's attempt count; a Retry-After header overrides the
// backoff. Other 4xx responses fail at once.
func Send(ctx context.Context, cfg Config, event Event) error {
	body, err := FormatPayload(cfg.Format, event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	client := &http.Client{Timeout: cfg.timeout()}

	var lastErr error
	n := cfg.attempts()
	for attempt := 1; attempt <= n; attempt++ {
		wait, retry, err := post(ctx, client, cfg, event, body)
		if err == nil {
			return nil
		}
		if !retry {
			return err
		}
		lastErr = err
		if attempt == n {
			break
		}
		if wait <= 0 {
			wait = cfg.backoff(attempt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("%s webhook failed after %d attempts: %w", event.Kind(), n, lastErr)
}

// post makes one delivery attempt. wait is the server's requested delay,
// when it sent one; retry reports whether another attempt may succeed.
func post(ctx context.Context, client *http.Client, cfg Config, event Event, body []byte) (wait time.Duration, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Intentguard-Event", event.Kind())
	if event.ExecutionID != "" {
		// Receivers dedupe retried deliveries on this key.
		req.Header.Set("Idempotency-Key", event.ExecutionID+":"+event.Kind())
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, ctx.Err() == nil, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return 0, false, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return retryAfter(resp.Header.Get("Retry-After")), true, fmt.Errorf("webhook throttled: HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return 0, false, fmt.Errorf("webhook rejected: HTTP %d", resp.StatusCode)
	default:
		return 0, true, fmt.Errorf("webhook server error: HTTP %d", resp.StatusCode)
	}
}

// retryAfter parses a Retry-After value in seconds, capped at maxWait.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxWait {
		return maxWait
	}
	return d
}
