package node

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/fatih/color"

	"github.com/lilendian0x00/nodeharvest/utils"
)

const shadowsocksDefaultPort = 80

var shadowsocksParams = allowList("plugin")

type Shadowsocks struct {
	base
	Cipher   string
	Password string
}

func (s *Shadowsocks) Protocol() Protocol { return ProtocolShadowsocks }
func (s *Shadowsocks) Credential() string { return s.Password }

// parse accepts both link layouts:
//
//	ss://<cipher:password | base64(cipher:password)>@host:port?plugin=...#label
//	ss://base64(cipher:password@host:port)#label
func (s *Shadowsocks) parse(body string) (string, error) {
	p := splitURI(body)
	if !p.hasUser {
		raw, _, _ := strings.Cut(body, "#")
		raw, _, _ = strings.Cut(raw, "?")
		decoded, err := utils.Base64Decode(unescape(strings.TrimSuffix(raw, "/"), false))
		if err != nil {
			return "", rejectErr(ReasonDecode, err, "ss body")
		}
		inner := splitURI(string(decoded))
		if !inner.hasUser {
			return "", reject(ReasonMissingField, "ss userinfo")
		}
		p.userinfo, p.hostport, p.hasUser = inner.userinfo, inner.hostport, true
	}

	cipher, password, ok := splitCipherPassword(p.userinfo)
	if !ok {
		decoded, err := utils.Base64Decode(unescape(p.userinfo, false))
		if err != nil {
			return "", rejectErr(ReasonDecode, err, "ss userinfo")
		}
		cipher, password, ok = splitCipherPassword(string(decoded))
		if !ok {
			return "", reject(ReasonMissingField, "ss cipher:password")
		}
	}
	s.Cipher = strings.ToLower(cipher)
	s.Password = password

	var err error
	if s.Address, s.Port, err = splitHostPort(p.hostport, shadowsocksDefaultPort); err != nil {
		return "", err
	}
	s.Extra = filterQuery(p.rawQuery, shadowsocksParams)
	return p.label(), nil
}

func splitCipherPassword(userinfo string) (string, string, bool) {
	cipher, password, ok := strings.Cut(userinfo, ":")
	if !ok {
		return "", "", false
	}
	cipher = unescape(cipher, false)
	password = unescape(password, false)
	if cipher == "" || password == "" {
		return "", "", false
	}
	return cipher, password, true
}

func (s *Shadowsocks) Render(label string) (string, error) {
	if err := s.validate(); err != nil {
		return "", err
	}
	if s.Cipher == "" || s.Password == "" {
		return "", reject(ReasonMissingField, "ss cipher:password")
	}
	user := base64.RawURLEncoding.EncodeToString([]byte(s.Cipher + ":" + s.Password))
	return s.renderURL("ss", url.User(user), label), nil
}

func (s *Shadowsocks) DetailsStr() string {
	return details(s, "Password") + fmt.Sprintf("%s: %s\n", color.RedString("Cipher"), s.Cipher)
}
