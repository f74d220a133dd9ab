package node

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/lilendian0x00/nodeharvest/utils"
)

// ssrParams are stored decoded and re-encoded as base64url on render.
var ssrParams = []string{"obfsparam", "protoparam"}

// ShadowsocksR links are a single base64 token:
//
//	ssr://base64(host:port:protocol:method:obfs:base64(password)/?obfsparam=..&protoparam=..&remarks=..&group=..)
type ShadowsocksR struct {
	base
	Method   string
	Password string
	Proto    string
	Obfs     string
}

func (s *ShadowsocksR) Protocol() Protocol { return ProtocolShadowsocksR }
func (s *ShadowsocksR) Credential() string { return s.Password }

func (s *ShadowsocksR) parse(body string) (string, error) {
	raw, _, _ := strings.Cut(body, "#")
	decoded, err := utils.Base64Decode(unescape(raw, false))
	if err != nil {
		return "", rejectErr(ReasonDecode, err, "ssr body")
	}

	head, rawQuery, _ := strings.Cut(string(decoded), "?")
	head = strings.TrimSuffix(head, "/")

	// host may be a bare IPv6 literal, so fields are taken from the right.
	parts := strings.Split(head, ":")
	if len(parts) < 6 {
		return "", reject(ReasonMissingField, "ssr needs host:port:protocol:method:obfs:password")
	}
	n := len(parts)
	host := strings.Join(parts[:n-5], ":")
	s.Proto = parts[n-4]
	s.Method = strings.ToLower(parts[n-3])
	s.Obfs = parts[n-2]
	if s.Proto == "" {
		s.Proto = "origin"
	}
	if s.Obfs == "" {
		s.Obfs = "plain"
	}
	if s.Method == "" {
		return "", reject(ReasonMissingField, "ssr method")
	}

	password, err := utils.Base64Decode(parts[n-1])
	if err != nil {
		return "", rejectErr(ReasonDecode, err, "ssr password")
	}
	s.Password = string(password)
	if s.Password == "" {
		return "", reject(ReasonMissingField, "ssr password")
	}

	if s.Address, err = normalizeHost(host); err != nil {
		return "", err
	}
	if s.Port, err = parsePort(parts[n-5], defaultPort); err != nil {
		return "", err
	}

	s.Extra = url.Values{}
	var label string
	for _, pair := range strings.Split(rawQuery, "&") {
		k, v, _ := strings.Cut(pair, "=")
		if v == "" {
			continue
		}
		val, err := utils.Base64Decode(unescape(v, false))
		if err != nil {
			continue
		}
		switch k {
		case "obfsparam", "protoparam":
			if len(val) > 0 {
				s.Extra.Set(k, string(val))
			}
		case "remarks":
			label = string(val)
		}
	}
	return label, nil
}

func (s *ShadowsocksR) Render(label string) (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}
	if s.Method == "" || s.Password == "" {
		return "", reject(ReasonMissingField, "ssr method:password")
	}
	enc := base64.RawURLEncoding

	var b strings.Builder
	b.WriteString(strings.Trim(s.Address, "[]"))
	for _, f := range []string{strconv.Itoa(s.Port), s.Proto, s.Method, s.Obfs, enc.EncodeToString([]byte(s.Password))} {
		b.WriteByte(':')
		b.WriteString(f)
	}
	b.WriteString("/?")
	params := s.Params()
	for _, k := range ssrParams {
		if v := params.Get(k); v != "" {
			b.WriteString(k + "=" + enc.EncodeToString([]byte(v)) + "&")
		}
	}
	b.WriteString("remarks=" + enc.EncodeToString([]byte(label)))
	return "ssr://" + enc.EncodeToString([]byte(b.String())), nil
}

func (s *ShadowsocksR) DetailsStr() string {
	return details(s, "Password") + fmt.Sprintf("%s: %s\n%s: %s\n%s: %s\n",
		color.RedString("Method"), s.Method,
		color.RedString("SSR Protocol"), s.Proto,
		color.RedString("Obfs"), s.Obfs)
}
