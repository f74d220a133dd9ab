package fetch

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// UTLSFetcher dials each request itself and presents a Chrome ClientHello,
// speaking h2 or http/1.1 depending on the negotiated ALPN. Some source
// hosts reject the Go TLS fingerprint outright.
type UTLSFetcher struct {
	cfg Config
}

func NewUTLSFetcher(cfg Config) *UTLSFetcher {
	return &UTLSFetcher{cfg: cfg}
}

func (f *UTLSFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	port := u.Port()
	if port == "" {
		if u.Scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	addr := net.JoinHostPort(u.Hostname(), port)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	req, err := f.newRequest(ctx, u)
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	switch u.Scheme {
	case "https":
		resp, err = f.roundTripTLS(ctx, conn, u, req)
	case "http":
		resp, err = roundTripHTTP1(conn, req)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}
	body, err := readLimited(resp.Body, f.cfg.MaxBody)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

func (f *UTLSFetcher) roundTripTLS(ctx context.Context, conn net.Conn, u *url.URL, req *http.Request) (*http.Response, error) {
	config := tls.Config{
		ServerName:         u.Hostname(),
		InsecureSkipVerify: f.cfg.Insecure,
	}
	uTlsConn := tls.UClient(conn, &config, tls.HelloChrome_Auto)
	if err := uTlsConn.HandshakeContext(ctx); err != nil {
		return nil, fmt.Errorf("uTlsConn.Handshake() error: %w", err)
	}

	switch alpn := uTlsConn.ConnectionState().NegotiatedProtocol; alpn {
	case "h2":
		req.Proto = "HTTP/2.0"
		req.ProtoMajor = 2
		req.ProtoMinor = 0

		tr := http2.Transport{
			ReadIdleTimeout: 20 * time.Second,
		}
		cConn, err := tr.NewClientConn(uTlsConn)
		if err != nil {
			return nil, fmt.Errorf("could not make http2 client conn: %w", err)
		}
		return cConn.RoundTrip(req)
	case "http/1.1", "":
		return roundTripHTTP1(uTlsConn, req)
	default:
		return nil, fmt.Errorf("unsupported alpn %q", alpn)
	}
}

func roundTripHTTP1(conn net.Conn, req *http.Request) (*http.Response, error) {
	req.Proto = "HTTP/1.1"
	req.ProtoMajor = 1
	req.ProtoMinor = 1
	req.Close = true
	if err := req.Write(conn); err != nil {
		return nil, err
	}
	return http.ReadResponse(bufio.NewReader(conn), req)
}

func (f *UTLSFetcher) newRequest(ctx context.Context, u *url.URL) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("accept-language", "en-US,en;q=0.9")
	req.Header.Set("pragma", "no-cache")
	req.Header.Set("sec-fetch-dest", "document")
	req.Header.Set("sec-fetch-mode", "navigate")
	req.Header.Set("sec-fetch-site", "none")
	req.Header.Set("upgrade-insecure-requests", "1")
	ua := f.cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("user-agent", ua)
	return req, nil
}
