package node

import (
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"github.com/lilendian0x00/nodeharvest/utils"
)

// Truncate cuts s at the first character that cannot belong to a link
// embedded in markup: '<', whitespace, a quote, a backtick or a comma.
func Truncate(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("<\"'`,", r)
	})
	if i >= 0 {
		return s[:i]
	}
	return s
}

// uriParts is a link split without url.Parse, which rejects too many of
// the malformed-but-usable links found in the wild.
type uriParts struct {
	userinfo string
	hasUser  bool
	hostport string
	rawQuery string
	fragment string
}

func splitURI(body string) uriParts {
	var p uriParts
	body, p.fragment, _ = strings.Cut(body, "#")
	body, p.rawQuery, _ = strings.Cut(body, "?")
	if at := strings.LastIndex(body, "@"); at >= 0 {
		p.userinfo = body[:at]
		p.hasUser = true
		body = body[at+1:]
	}
	if slash := strings.Index(body, "/"); slash >= 0 {
		body = body[:slash]
	}
	p.hostport = body
	return p
}

func (p uriParts) label() string {
	return unescape(p.fragment, false)
}

func unescape(s string, query bool) string {
	var (
		out string
		err error
	)
	if query {
		out, err = url.QueryUnescape(s)
	} else {
		out, err = url.PathUnescape(s)
	}
	if err != nil {
		return s
	}
	return out
}

// splitHostPort applies the shared host/port rule: a ']' marks a bracketed
// IPv6 host, otherwise the last ':' separates the port.
func splitHostPort(hostport string, defPort int) (string, int, error) {
	var host, portStr string
	if end := strings.Index(hostport, "]"); end >= 0 {
		host = hostport[:end+1]
		rest := hostport[end+1:]
		if rest != "" {
			if rest[0] != ':' {
				return "", 0, reject(ReasonBadHost, "garbage after ipv6 literal %q", hostport)
			}
			portStr = rest[1:]
		}
	} else if i := strings.LastIndex(hostport, ":"); i >= 0 {
		host, portStr = hostport[:i], hostport[i+1:]
		if strings.Contains(host, ":") {
			return "", 0, reject(ReasonBadHost, "unbracketed ipv6 host %q", hostport)
		}
	} else {
		host = hostport
	}

	host, err := normalizeHost(host)
	if err != nil {
		return "", 0, err
	}
	port, err := parsePort(portStr, defPort)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// normalizeHost lowercases host and brackets bare IPv6 literals.
// Unbracketed hosts containing ':' that are not IPv6 are rejected.
func normalizeHost(host string) (string, error) {
	host = strings.ToLower(strings.TrimSpace(host))
	if host == "" {
		return "", reject(ReasonMissingField, "host")
	}
	if strings.HasPrefix(host, "[") || strings.HasSuffix(host, "]") {
		if !strings.HasPrefix(host, "[") || !strings.HasSuffix(host, "]") || !utils.IsIPv6(host[1:len(host)-1]) {
			return "", reject(ReasonBadHost, "invalid ipv6 literal %q", host)
		}
		return host, nil
	}
	if strings.Contains(host, ":") {
		if utils.IsIPv6(host) {
			return "[" + host + "]", nil
		}
		return "", reject(ReasonBadHost, "unbracketed host %q", host)
	}
	if !utils.IsValidHostOrSNI(host) || strings.ContainsAny(host, "@/?#%\\") {
		return "", reject(ReasonBadHost, "invalid characters in host %q", host)
	}
	return host, nil
}

func parsePort(s string, defPort int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if defPort == 0 {
			return 0, reject(ReasonMissingField, "port")
		}
		return defPort, nil
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, rejectErr(ReasonBadPort, err, "port %q", s)
	}
	if !utils.IsValidPort(port) {
		return 0, reject(ReasonBadPort, "port %d out of range", port)
	}
	return port, nil
}

// filterQuery keeps allow-listed, non-empty parameters only.
// Repeated names keep every value in order of appearance.
func filterQuery(raw string, allow map[string]struct{}) url.Values {
	out := url.Values{}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key := unescape(k, true)
		if _, ok := allow[key]; !ok {
			continue
		}
		val := unescape(v, true)
		if val == "" {
			continue
		}
		out[key] = append(out[key], val)
	}
	return out
}

// rawQueryValue returns the first value of name in raw, allow-list aside.
func rawQueryValue(raw, name string) string {
	for _, pair := range strings.Split(raw, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if unescape(k, true) == name {
			return unescape(v, true)
		}
	}
	return ""
}

func allowList(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// dropBadSNI removes host-like parameter values carrying characters that
// cannot appear in a server name. The endpoint itself is kept.
func dropBadSNI(params url.Values, names ...string) {
	for _, n := range names {
		vals := params[n]
		if len(vals) == 0 {
			continue
		}
		kept := vals[:0]
		for _, v := range vals {
			if utils.IsValidHostOrSNI(v) {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(params, n)
			continue
		}
		params[n] = kept
	}
}

// fill sets address, port and allow-listed params from a split link.
func (b *base) fill(p uriParts, defPort int, allow map[string]struct{}) error {
	var err error
	if b.Address, b.Port, err = splitHostPort(p.hostport, defPort); err != nil {
		return err
	}
	b.Extra = filterQuery(p.rawQuery, allow)
	dropBadSNI(b.Extra, "sni", "host", "peer", "authority")
	return nil
}
