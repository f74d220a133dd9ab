package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"github.com/lilendian0x00/nodeharvest/pkg/node"
)

// Windows default echo payload.
var echoData = []byte("abcdefghijklmnopqrstuvwabcdefghi")

var echoSeq atomic.Uint32

// ICMPProber sends ICMP echo requests to IPv4 hosts. It needs raw socket
// privileges unless Unprivileged is set, which uses datagram ICMP sockets
// where the kernel allows them.
type ICMPProber struct {
	Timeout      time.Duration
	Unprivileged bool
}

func (p *ICMPProber) Probe(ctx context.Context, e node.Endpoint) (time.Duration, error) {
	dst, err := resolveIPv4(ctx, e.Host)
	if err != nil {
		return 0, err
	}
	c, err := p.listen()
	if err != nil {
		return 0, err
	}
	defer c.Close()
	return p.echo(ctx, c, dst, int(echoSeq.Add(1)&0xffff))
}

// Ping sends count echoes one second apart and calls each with every result.
func (p *ICMPProber) Ping(ctx context.Context, host string, count int, each func(seq int, rtt time.Duration, err error)) error {
	dst, err := resolveIPv4(ctx, host)
	if err != nil {
		return err
	}
	c, err := p.listen()
	if err != nil {
		return err
	}
	defer c.Close()

	for seq := 1; seq <= count; seq++ {
		rtt, err := p.echo(ctx, c, dst, seq)
		each(seq, rtt, err)
		if seq == count {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil
}

func (p *ICMPProber) listen() (*icmp.PacketConn, error) {
	network := "ip4:icmp"
	if p.Unprivileged {
		network = "udp4"
	}
	c, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("listen err: %w", err)
	}
	return c, nil
}

func (p *ICMPProber) echo(ctx context.Context, c *icmp.PacketConn, dst net.IP, seq int) (time.Duration, error) {
	id := os.Getpid() & 0xffff
	wm := icmp.Message{
		Type: ipv4.ICMPTypeEcho, Code: 0,
		Body: &icmp.Echo{
			ID: id, Seq: seq,
			Data: echoData,
		},
	}
	wb, err := wm.Marshal(nil)
	if err != nil {
		return 0, err
	}

	deadline := time.Now().Add(p.timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.SetDeadline(deadline); err != nil {
		return 0, err
	}

	var addr net.Addr = &net.IPAddr{IP: dst}
	if p.Unprivileged {
		addr = &net.UDPAddr{IP: dst}
	}
	start := time.Now()
	if _, err := c.WriteTo(wb, addr); err != nil {
		return 0, fmt.Errorf("WriteTo err: %w", err)
	}

	rb := make([]byte, 1500)
	for {
		n, _, err := c.ReadFrom(rb)
		if err != nil {
			return 0, fmt.Errorf("ReadFrom err: %w", err)
		}
		rm, err := icmp.ParseMessage(ipv4.ICMPTypeEchoReply.Protocol(), rb[:n])
		if err != nil {
			continue
		}
		if rm.Type != ipv4.ICMPTypeEchoReply {
			continue
		}
		// Datagram sockets rewrite the ID, so only the sequence is matched there.
		if reply, ok := rm.Body.(*icmp.Echo); ok && reply.Seq == seq && (p.Unprivileged || reply.ID == id) {
			return time.Since(start), nil
		}
	}
}

func (p *ICMPProber) timeout() time.Duration {
	if p.Timeout > 0 {
		return p.Timeout
	}
	return 2 * time.Second
}

func resolveIPv4(ctx context.Context, host string) (net.IP, error) {
	host = strings.Trim(host, "[]")
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("%w: icmp echo is ipv4 only", ErrUnsupported)
	}
	addrs, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w: no ipv4 address for %s", ErrUnsupported, host)
	}
	return addrs[0], nil
}
