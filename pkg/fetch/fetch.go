// Package fetch retrieves source documents over HTTP(S).
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	TransportReq  = "req"
	TransportUTLS = "utls"

	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

type Config struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	Transport string
	Insecure  bool
	// MaxBody truncates larger responses. Zero means unlimited.
	MaxBody int64
}

func DefaultConfig() Config {
	return Config{
		Timeout:   15 * time.Second,
		Retries:   1,
		UserAgent: DefaultUserAgent,
		Transport: TransportReq,
		MaxBody:   16 << 20,
	}
}

// Fetcher returns the body of one source. Implementations bound every call
// by Config.Timeout and release their connections before returning.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

func New(cfg Config) (Fetcher, error) {
	switch cfg.Transport {
	case "", TransportReq:
		return NewReqFetcher(cfg), nil
	case TransportUTLS:
		return NewUTLSFetcher(cfg), nil
	}
	return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
}

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.URL, e.Code)
}

// Get fetches locator. A locator without a scheme is tried as https first
// and then as http; the scheme that answered is returned.
func Get(ctx context.Context, f Fetcher, locator string) ([]byte, string, error) {
	if i := strings.Index(locator, "://"); i > 0 {
		body, err := f.Fetch(ctx, locator)
		return body, strings.ToLower(locator[:i]), err
	}

	var errs []error
	for _, scheme := range []string{"https", "http"} {
		if ctx.Err() != nil {
			break
		}
		body, err := f.Fetch(ctx, scheme+"://"+locator)
		if err == nil {
			return body, scheme, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", scheme, err))
	}
	if len(errs) == 0 {
		return nil, "", ctx.Err()
	}
	return nil, "", errors.Join(errs...)
}

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max > 0 {
		r = io.LimitReader(r, max)
	}
	return io.ReadAll(r)
}
