package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/imroc/req/v3"
)

// ReqFetcher uses a Chrome-impersonating req client with retries.
type ReqFetcher struct {
	client *req.Client
	cfg    Config
}

func NewReqFetcher(cfg Config) *ReqFetcher {
	c := req.C().
		SetTimeout(cfg.Timeout).
		SetTLSHandshakeTimeout(cfg.Timeout).
		SetTLSFingerprintChrome().
		ImpersonateChrome().
		DisableAutoReadResponse()

	if cfg.UserAgent != "" {
		c.SetUserAgent(cfg.UserAgent)
	}
	if cfg.Insecure {
		c.EnableInsecureSkipVerify()
	}
	if cfg.Retries > 0 {
		c.SetCommonRetryCount(cfg.Retries).
			SetCommonRetryBackoffInterval(200*time.Millisecond, 2*time.Second)
	}
	return &ReqFetcher{client: c, cfg: cfg}
}

func (f *ReqFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	res, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if !res.IsSuccessState() {
		return nil, &StatusError{URL: rawURL, Code: res.StatusCode}
	}
	body, err := readLimited(res.Body, f.cfg.MaxBody)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// Close drops idle connections held by the client.
func (f *ReqFetcher) Close() {
	f.client.CloseIdleConnections()
}
