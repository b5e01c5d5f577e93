package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
	"unicode/utf8"

	"shedcmd/internal/fault"
	appLog "shedcmd/internal/log"
)

// DefaultTimeout is used when no fetch timeout is configured.
const DefaultTimeout = 15 * time.Second

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// validators holds the HTTP cache metadata of the last accepted response.
type validators struct {
	ETag         string
	LastModified string
}

// HTTP fetches the schedule with a GET request, honoring ETag and
// Last-Modified from the previous successful response.
type HTTP struct {
	URL     string
	Headers map[string]string

	client *http.Client

	mu    sync.Mutex
	cache validators
}

// NewHTTP creates an HTTP source. A zero timeout means DefaultTimeout.
func NewHTTP(url string, headers map[string]string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTP{
		URL:     url,
		Headers: headers,
		client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Kind() Kind { return KindHTTP }

func (h *HTTP) Describe() string { return redactURL(h.URL) }

// Obtain performs one GET. Transport errors, non-2xx statuses and bodies that
// are not UTF-8 text are recoverable. A 304 returns previous.
func (h *HTTP) Obtain(ctx context.Context, previous string) (string, error) {
	if h.URL == "" {
		return "", fault.Fatal(errors.New("source URL is empty"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", fault.Fatalf("building request: %w", err)
	}
	for name, value := range h.Headers {
		req.Header.Set(name, value)
	}

	h.mu.Lock()
	meta := h.cache
	h.mu.Unlock()

	// Conditional headers only make sense when there is a body to fall back to.
	if previous != "" {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	appLog.Info("schedule fetch start", "url", redactURL(h.URL))

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fault.Recoverablef("fetching schedule: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified && previous != "":
		appLog.Info("schedule not modified; keeping cache", "url", redactURL(h.URL))
		return previous, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		if err != nil {
			return "", fault.Recoverablef("reading schedule body: %w", err)
		}
		if !utf8.Valid(body) {
			return "", fault.Recoverablef("schedule body from %s is not UTF-8 text", redactURL(h.URL))
		}

		h.mu.Lock()
		h.cache = validators{
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		h.mu.Unlock()

		appLog.Info("schedule fetch success", "url", redactURL(h.URL), "status", resp.StatusCode, "bytes", len(body))
		return string(body), nil

	default:
		return "", fault.Recoverable(fmt.Errorf("fetching schedule: unexpected status %s", resp.Status))
	}
}

// redactURL hides the path and query of a URL for logging purposes.
//
//	https://example.com/area/123?token=abcd -> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "url://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	if j == len(u) {
		return u
	}
	return u[:j] + redactedSuffix
}
