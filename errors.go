package parley

import (
	"fmt"
	"strconv"
	"time"
)

// ErrProvider reports a failure inside an LLM provider.
type ErrProvider struct {
	Provider string
	Message  string
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx HTTP response from a provider backend.
// RetryAfter is parsed from the Retry-After header when present; the retry
// middleware uses it as a delay floor.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ParseRetryAfter parses a Retry-After header value: either delay-seconds
// or an HTTP-date. Returns 0 for empty or unparseable values.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
