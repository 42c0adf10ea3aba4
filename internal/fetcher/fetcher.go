package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Default byte budgets.
const (
	DefaultSmallBudget int64 = 150 * 1024
	DefaultLargeBudget int64 = 600 * 1024
)

const (
	defaultTimeout   = 30 * time.Second
	DefaultUserAgent = "media-embedder/1.0 (+thumbnail prefetch)"
)

// Budget is the pair of byte ceilings used by a progressive fetch.
type Budget struct {
	Small int64
	Large int64
}

// DefaultBudget returns the 150 KiB / 600 KiB budget pair.
func DefaultBudget() Budget {
	return Budget{Small: DefaultSmallBudget, Large: DefaultLargeBudget}
}

// Validate checks that both ceilings are positive and Large exceeds Small.
func (b Budget) Validate() error {
	if b.Small <= 0 {
		return fmt.Errorf("small budget must be positive, got %d", b.Small)
	}
	if b.Large <= b.Small {
		return fmt.Errorf("large budget (%d) must exceed small budget (%d)", b.Large, b.Small)
	}
	return nil
}

// Label names a budget for logs and metrics.
func (b Budget) Label(n int64) string {
	switch n {
	case b.Small:
		return "small"
	case b.Large:
		return "large"
	default:
		return strconv.FormatInt(n, 10)
	}
}

// Chunk is the leading bytes of a remote file.
type Chunk struct {
	URL       string
	Data      []byte
	Budget    int64
	Truncated bool
}

// TransportError reports a non-2xx response.
type TransportError struct {
	URL        string
	StatusCode int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// NetworkError reports a request that failed before any response arrived.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Observer receives one call per completed fetch. status is one of
// "success", "truncated", "transport_error" or "network_error".
type Observer interface {
	ObserveFetch(budget, status string, bytes int64, durationSeconds float64)
}

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Budget    Budget
	Observer  Observer
	// Client overrides the HTTP client built from Timeout.
	Client *http.Client
}

// Fetcher performs ranged GETs.
type Fetcher struct {
	client    *http.Client
	userAgent string
	budget    Budget
	observer  Observer
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Budget == (Budget{}) {
		opts.Budget = DefaultBudget()
	}
	client := opts.Client
	if client == nil {
		client = NewClient(opts.Timeout)
	}
	return &Fetcher{
		client:    client,
		userAgent: opts.UserAgent,
		budget:    opts.Budget,
		observer:  opts.Observer,
	}
}

// NewClient returns an HTTP client with bounded handshake and header waits.
func NewClient(timeout time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: base,
		Timeout:   timeout,
	}
}

// Budget returns the configured budget pair.
func (f *Fetcher) Budget() Budget {
	return f.budget
}

// Fetch downloads at most budget leading bytes of url.
func (f *Fetcher) Fetch(ctx context.Context, url string, budget int64) (*Chunk, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("fetch %s: budget must be positive, got %d", url, budget)
	}

	start := time.Now()
	label := f.budget.Label(budget)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.observe(label, "network_error", 0, start)
		return nil, &NetworkError{URL: url, Err: err}
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", budget-1))
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		f.observe(label, "network_error", 0, start)
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		f.observe(label, "transport_error", 0, start)
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode}
	}

	data, readErr := readPrefix(resp.Body, budget)

	chunk := &Chunk{
		URL:    url,
		Data:   data,
		Budget: budget,
	}
	status := "success"
	if readErr != nil {
		chunk.Truncated = true
		status = "truncated"
	}
	f.observe(label, status, int64(len(data)), start)
	return chunk, nil
}

// readPrefix reads up to limit bytes. A read error after the response
// headers is returned alongside the bytes already read.
func readPrefix(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func (f *Fetcher) observe(budget, status string, n int64, start time.Time) {
	if f.observer == nil {
		return
	}
	f.observer.ObserveFetch(budget, status, n, time.Since(start).Seconds())
}
