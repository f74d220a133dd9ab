// Package probe checks endpoint reachability. It never performs a protocol
// handshake; a successful connect or echo is all it reports.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/lilendian0x00/nodeharvest/pkg/node"
)

const (
	MethodTCP  = "tcp"
	MethodICMP = "icmp"
)

// ErrUnsupported is returned when a prober cannot test an endpoint at all,
// as opposed to testing it and getting no answer.
var ErrUnsupported = errors.New("endpoint not testable by this method")

// Prober measures one endpoint. The returned latency is meaningful only
// when err is nil.
type Prober interface {
	Probe(ctx context.Context, e node.Endpoint) (time.Duration, error)
}

func New(method string, timeout time.Duration) (Prober, error) {
	switch strings.ToLower(method) {
	case "", MethodTCP:
		return &TCPProber{Timeout: timeout}, nil
	case MethodICMP:
		return &ICMPProber{Timeout: timeout}, nil
	}
	return nil, fmt.Errorf("unknown probe method %q", method)
}

// TCPProber reports the time to establish a TCP connection.
type TCPProber struct {
	Timeout time.Duration
}

func (p *TCPProber) Probe(ctx context.Context, e node.Endpoint) (time.Duration, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	var d net.Dialer
	start := time.Now()
	conn, err := d.DialContext(ctx, "tcp", e.String())
	if err != nil {
		return 0, fmt.Errorf("couldn't establish tcp conn: %w", err)
	}
	latency := time.Since(start)
	conn.Close()
	return latency, nil
}
