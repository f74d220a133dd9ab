package node

import "net/url"

var trojanParams = allowList(
	"security", "sni", "peer", "alpn", "fp", "type", "host", "path", "flow",
	"pbk", "sid", "spx", "headerType", "serviceName", "mode", "allowInsecure",
	"authority",
)

type Trojan struct {
	base
	Password string
}

func (t *Trojan) Protocol() Protocol { return ProtocolTrojan }
func (t *Trojan) Credential() string { return t.Password }

func (t *Trojan) parse(body string) (string, error) {
	p := splitURI(body)
	t.Password = unescape(p.userinfo, false)
	if t.Password == "" {
		return "", reject(ReasonMissingField, "trojan password")
	}
	if err := t.fill(p, defaultPort, trojanParams); err != nil {
		return "", err
	}
	return p.label(), nil
}

func (t *Trojan) Render(label string) (string, error) {
	if err := t.validate(); err != nil {
		return "", err
	}
	if t.Password == "" {
		return "", reject(ReasonMissingField, "trojan password")
	}
	return t.renderURL("trojan", url.User(t.Password), label), nil
}

func (t *Trojan) DetailsStr() string {
	return details(t, "Password")
}
