// FingerSync - Biometric Terminal Fleet Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fingersync

/*
Package hrclient talks to the HR system of record (ERPNext / Frappe HRMS).

Client Features:
  - token key:secret authentication
  - client-side pacing with golang.org/x/time/rate
  - circuit breaker (sony/gobreaker) over transport errors and 5xx responses
  - HTTP 429 handling with exponential backoff and Retry-After
  - bounded error-body reads for diagnostics

Errors are classified with sentinels: ErrUnavailable for connectivity
(including an open circuit), ErrNotFound, and ErrDuplicate for a checkin the
HR system already holds.
*/
package hrclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/fingersync/internal/config"
	"github.com/tomtom215/fingersync/internal/logging"
	"github.com/tomtom215/fingersync/internal/metrics"
)

var (
	// ErrUnavailable means the HR system could not be reached.
	ErrUnavailable = errors.New("hr system unavailable")

	// ErrCircuitOpen is returned while the breaker rejects calls. It also
	// matches ErrUnavailable.
	ErrCircuitOpen = errors.New("hr circuit open")

	// ErrNotFound is a 404 on a resource lookup.
	ErrNotFound = errors.New("hr resource not found")

	// ErrDuplicate is a checkin the HR system already has.
	ErrDuplicate = errors.New("duplicate checkin")
)

// maxErrorBodySize limits how much of an error response is read for diagnostics.
const maxErrorBodySize = 64 * 1024

// errServerStatus marks a 5xx inside the breaker so it counts as a failure.
var errServerStatus = errors.New("server error status")

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// Client is safe for concurrent use; attendance ingestion shares one
// Client across hundreds of goroutines.
type Client struct {
	baseURL string
	auth    string
	version int

	client         *http.Client
	limiter        *rate.Limiter
	cb             *gobreaker.CircuitBreaker[*response]
	maxRetries     int
	retryBaseDelay time.Duration
}

// New builds a Client from the hr config section.
func New(cfg *config.HRConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	burst := cfg.RateBurst
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 256

	c := &Client{
		baseURL:        strings.TrimRight(cfg.URL, "/"),
		auth:           "token " + cfg.APIKey + ":" + cfg.APISecret,
		version:        cfg.Version,
		client:         &http.Client{Timeout: timeout, Transport: transport},
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     5,
		retryBaseDelay: time.Second,
	}

	metrics.HRCircuitState.Set(0)
	c.cb = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "hr-api",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return counts.ConsecutiveFailures >= 5
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("HR circuit state transition")
			switch to {
			case gobreaker.StateOpen:
				metrics.HRCircuitState.Set(2)
			case gobreaker.StateHalfOpen:
				metrics.HRCircuitState.Set(1)
			default:
				metrics.HRCircuitState.Set(0)
			}
		},
	})
	return c
}

// resourcePath builds /api/resource/<doctype>[/<name>] with escaped segments.
func resourcePath(doctype string, name ...string) string {
	p := "/api/resource/" + url.PathEscape(doctype)
	for _, n := range name {
		p += "/" + url.PathEscape(n)
	}
	return p
}

// do sends one request. path must already be escaped. endpoint is a
// low-cardinality metrics label. Any
// HTTP response is returned to the caller; only transport failures, an open
// circuit and exhausted 429 retries are errors.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, payload any) (*response, error) {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode %s request: %w", endpoint, err)
		}
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.cb.Execute(func() (*response, error) {
		r, err := c.send(ctx, method, reqURL, body)
		if err != nil {
			return nil, err
		}
		if r.status >= 500 {
			return r, errServerStatus
		}
		return r, nil
	})

	switch {
	case errors.Is(err, errServerStatus):
		err = nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordHRRequest(endpoint, "circuit_open", 0)
		return nil, fmt.Errorf("%s: %w: %w", endpoint, ErrUnavailable, ErrCircuitOpen)
	case err != nil:
		metrics.RecordHRRequest(endpoint, "error", time.Since(start))
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %v", endpoint, ErrUnavailable, err)
	}

	metrics.RecordHRRequest(endpoint, strconv.Itoa(resp.status), time.Since(start))
	return resp, nil
}

// send performs the request with 429 backoff (1s, 2s, 4s, ...).
func (c *Client) send(ctx context.Context, method, reqURL string, body []byte) (*response, error) {
	for attempt := 0; ; attempt++ {
		var rdr io.Reader = http.NoBody
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, rdr)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", c.auth)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			defer resp.Body.Close()
			var data []byte
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				data, err = io.ReadAll(resp.Body)
				if err != nil {
					return nil, fmt.Errorf("read response: %w", err)
				}
			} else {
				data = readBodyForError(resp.Body)
			}
			return &response{status: resp.StatusCode, body: data}, nil
		}

		_ = resp.Body.Close()
		if attempt >= c.maxRetries {
			return nil, fmt.Errorf("rate limit exceeded after %d retries (HTTP 429)", c.maxRetries)
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				delay = time.Duration(secs) * time.Second
			}
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// statusError formats a non-2xx response.
func statusError(endpoint string, r *response) error {
	if r.status == http.StatusNotFound {
		return fmt.Errorf("%s: %w", endpoint, ErrNotFound)
	}
	return fmt.Errorf("%s: status %d: %s", endpoint, r.status, errorMessage(r.body))
}

// errorMessage extracts the Frappe exception text when present.
func errorMessage(body []byte) string {
	var e struct {
		Exc     string `json:"exc"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Exc != "" {
			var frames []string
			if json.Unmarshal([]byte(e.Exc), &frames) == nil && len(frames) > 0 {
				return frames[0]
			}
			return e.Exc
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return string(body)
}

// Ping checks credentials and reachability.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, "ping", http.MethodGet, "/api/method/frappe.auth.get_logged_user", nil, nil)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return fmt.Errorf("%w: %v", ErrUnavailable, statusError("ping", resp))
	}
	return nil
}
