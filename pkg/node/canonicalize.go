package node

import (
	"sort"
	"strings"

	"github.com/lilendian0x00/nodeharvest/utils"
)

// Canonicalizer turns raw candidates into nodes under a fixed policy.
// It holds no mutable state and is safe for concurrent use.
type Canonicalizer struct {
	policy       Policy
	placeholders map[string]struct{}
	keywords     []string
}

func NewCanonicalizer(p Policy) *Canonicalizer {
	if p.MinLength <= 0 {
		p.MinLength = DefaultMinLength
	}
	c := &Canonicalizer{
		policy:       p,
		placeholders: lowerSet(p.PlaceholderHosts),
	}
	for k := range lowerSet(p.RejectLabelKeywords) {
		c.keywords = append(c.keywords, k)
	}
	sort.Strings(c.keywords)
	return c
}

var defaultCanonicalizer = NewCanonicalizer(DefaultPolicy())

// Parse canonicalizes candidate under DefaultPolicy.
func Parse(candidate string) (Node, error) {
	return defaultCanonicalizer.Parse(candidate)
}

func (c *Canonicalizer) Policy() Policy {
	return c.policy
}

func (c *Canonicalizer) Fingerprint(n Node) Fingerprint {
	return FingerprintOf(n, c.policy)
}

// parser is implemented by every node variant.
type parser interface {
	Node
	// parse fills the node from the text after "scheme://" and returns the
	// display label found in the link, which is never stored.
	parse(body string) (label string, err error)
}

func newParser(p Protocol, link string) parser {
	b := base{OrigLink: link}
	switch p {
	case ProtocolShadowsocks:
		return &Shadowsocks{base: b}
	case ProtocolShadowsocksR:
		return &ShadowsocksR{base: b}
	case ProtocolVmess:
		return &Vmess{base: b}
	case ProtocolVless:
		return &Vless{base: b}
	case ProtocolTrojan:
		return &Trojan{base: b}
	case ProtocolHysteria:
		return &Hysteria{base: b}
	case ProtocolHysteria2:
		return &Hysteria2{base: b}
	case ProtocolTuic:
		return &Tuic{base: b}
	}
	return nil
}

// Parse returns the node described by candidate or a *RejectError.
// It never panics on malformed input.
func (c *Canonicalizer) Parse(candidate string) (Node, error) {
	link := Truncate(strings.TrimSpace(candidate))
	if len(link) < c.policy.MinLength {
		return nil, reject(ReasonTooShort, "%d characters", len(link))
	}

	scheme, body, ok := strings.Cut(link, "://")
	if !ok {
		return nil, reject(ReasonUnsupported, "no scheme")
	}
	proto, ok := ProtocolFromScheme(scheme)
	if !ok {
		return nil, reject(ReasonUnsupported, "scheme %q", scheme)
	}

	n := newParser(proto, link)
	label, err := n.parse(body)
	if err != nil {
		return nil, err
	}
	if err := c.checkHost(n.Endpoint().Host); err != nil {
		return nil, err
	}
	if kw := c.blockedKeyword(label); kw != "" {
		return nil, reject(ReasonLabel, "label contains %q", kw)
	}
	return n, nil
}

func (c *Canonicalizer) checkHost(host string) error {
	h := strings.ToLower(host)
	if _, ok := c.placeholders[h]; ok {
		return reject(ReasonPlaceholder, "host %q", host)
	}
	if strings.Contains(h, "${") || strings.ContainsAny(h, "{}") {
		return reject(ReasonPlaceholder, "template host %q", host)
	}
	if utils.IsLocalIP(h) {
		return reject(ReasonPlaceholder, "local address %q", host)
	}
	return nil
}

func (c *Canonicalizer) blockedKeyword(label string) string {
	if label == "" || len(c.keywords) == 0 {
		return ""
	}
	l := strings.ToLower(label)
	for _, kw := range c.keywords {
		if strings.Contains(l, kw) {
			return kw
		}
	}
	return ""
}
