package node

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

type Protocol string

const (
	ProtocolShadowsocks  Protocol = "ss"
	ProtocolShadowsocksR Protocol = "ssr"
	ProtocolVmess        Protocol = "vmess"
	ProtocolVless        Protocol = "vless"
	ProtocolTrojan       Protocol = "trojan"
	ProtocolHysteria     Protocol = "hysteria"
	ProtocolHysteria2    Protocol = "hysteria2"
	ProtocolTuic         Protocol = "tuic"
)

// Protocols lists every supported protocol in output order.
var Protocols = []Protocol{
	ProtocolShadowsocks,
	ProtocolShadowsocksR,
	ProtocolVmess,
	ProtocolVless,
	ProtocolTrojan,
	ProtocolHysteria,
	ProtocolHysteria2,
	ProtocolTuic,
}

// schemes maps a link scheme to its protocol. hy2 is an alias of hysteria2.
var schemes = map[string]Protocol{
	"ss":        ProtocolShadowsocks,
	"ssr":       ProtocolShadowsocksR,
	"vmess":     ProtocolVmess,
	"vless":     ProtocolVless,
	"trojan":    ProtocolTrojan,
	"hysteria":  ProtocolHysteria,
	"hysteria2": ProtocolHysteria2,
	"hy2":       ProtocolHysteria2,
	"tuic":      ProtocolTuic,
}

// Schemes returns every accepted link scheme, aliases included.
func Schemes() []string {
	out := make([]string, 0, len(schemes))
	for s := range schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func ProtocolFromScheme(scheme string) (Protocol, bool) {
	p, ok := schemes[strings.ToLower(scheme)]
	return p, ok
}

// Endpoint is a host and port pair. IPv6 hosts are kept bracketed.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return e.Host + ":" + strconv.Itoa(e.Port)
}

// Node is one canonical proxy endpoint. Each protocol has its own variant
// carrying the credential fields that protocol requires.
type Node interface {
	Protocol() Protocol
	Endpoint() Endpoint
	// Credential is the identity material used verbatim by the fingerprint.
	Credential() string
	// Params holds allow-listed transport parameters only.
	Params() url.Values
	Origin() string
	Render(label string) (string, error)
	DetailsStr() string
}

type base struct {
	Address  string
	Port     int
	Extra    url.Values
	OrigLink string
}

func (b *base) Endpoint() Endpoint {
	return Endpoint{Host: b.Address, Port: b.Port}
}

func (b *base) Params() url.Values {
	if b.Extra == nil {
		return url.Values{}
	}
	return b.Extra
}

func (b *base) Origin() string {
	return b.OrigLink
}

func (b *base) validate() error {
	if b.Address == "" {
		return fmt.Errorf("empty address")
	}
	if b.Port < 1 || b.Port > 65535 {
		return fmt.Errorf("invalid port %d", b.Port)
	}
	return nil
}

func (b *base) hostPort() string {
	return b.Address + ":" + strconv.Itoa(b.Port)
}

// renderURL builds the query-string form shared by most protocols.
// url.Values.Encode sorts keys, so the output is deterministic.
func (b *base) renderURL(scheme string, user *url.Userinfo, label string) string {
	u := url.URL{
		Scheme:   scheme,
		User:     user,
		Host:     b.hostPort(),
		RawQuery: b.Params().Encode(),
		Fragment: label,
	}
	return escapeCommas(u.String())
}

// escapeCommas percent-encodes the ',' that url.URL leaves bare in userinfo
// and fragment. A comma ends a candidate during extraction, and the query
// and host never hold one unescaped.
func escapeCommas(s string) string {
	return strings.ReplaceAll(s, ",", "%2C")
}

// Render returns n in canonical form, falling back to the origin string
// when the node cannot be rebuilt.
func Render(n Node, label string) string {
	s, err := n.Render(label)
	if err != nil || s == "" {
		return n.Origin()
	}
	return s
}

func details(n Node, credName string) string {
	e := n.Endpoint()
	info := fmt.Sprintf("%s: %s\n%s: %s\n%s: %d\n%s: %s\n",
		color.RedString("Protocol"), n.Protocol(),
		color.RedString("Address"), e.Host,
		color.RedString("Port"), e.Port,
		color.RedString(credName), n.Credential())

	params := n.Params()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		info += fmt.Sprintf("%s: %s\n", color.RedString(k), strings.Join(params[k], ","))
	}
	return info
}
