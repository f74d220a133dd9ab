package node

import (
	"net/url"
	"strings"
)

var tuicParams = allowList(
	"congestion_control", "alpn", "sni", "udp_relay_mode", "allow_insecure",
	"disable_sni", "reduce_rtt",
)

type Tuic struct {
	base
	UUID     string
	Password string
}

func (t *Tuic) Protocol() Protocol { return ProtocolTuic }
func (t *Tuic) Credential() string { return t.UUID + ":" + t.Password }

func (t *Tuic) parse(body string) (string, error) {
	p := splitURI(body)
	uuid, password, _ := strings.Cut(p.userinfo, ":")
	t.UUID = unescape(uuid, false)
	t.Password = unescape(password, false)
	if t.UUID == "" || t.Password == "" {
		return "", reject(ReasonMissingField, "tuic uuid:password")
	}
	if err := t.fill(p, defaultPort, tuicParams); err != nil {
		return "", err
	}
	return p.label(), nil
}

func (t *Tuic) Render(label string) (string, error) {
	if err := t.validate(); err != nil {
		return "", err
	}
	if t.UUID == "" || t.Password == "" {
		return "", reject(ReasonMissingField, "tuic uuid:password")
	}
	return t.renderURL("tuic", url.UserPassword(t.UUID, t.Password), label), nil
}

func (t *Tuic) DetailsStr() string {
	return details(t, "UUID:Password")
}
