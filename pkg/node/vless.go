package node

import "net/url"

const defaultPort = 443

var vlessParams = allowList(
	"encryption", "security", "sni", "alpn", "fp", "type", "host", "path", "flow",
	"pbk", "sid", "spx", "headerType", "serviceName", "mode", "allowInsecure",
	"quicSecurity", "key", "authority", "extra",
)

type Vless struct {
	base
	ID string
}

func (v *Vless) Protocol() Protocol { return ProtocolVless }
func (v *Vless) Credential() string { return v.ID }

func (v *Vless) parse(body string) (string, error) {
	p := splitURI(body)
	v.ID = unescape(p.userinfo, false)
	if v.ID == "" {
		return "", reject(ReasonMissingField, "vless uuid")
	}
	if err := v.fill(p, defaultPort, vlessParams); err != nil {
		return "", err
	}
	return p.label(), nil
}

func (v *Vless) Render(label string) (string, error) {
	if err := v.validate(); err != nil {
		return "", err
	}
	if v.ID == "" {
		return "", reject(ReasonMissingField, "vless uuid")
	}
	return v.renderURL("vless", url.User(v.ID), label), nil
}

func (v *Vless) DetailsStr() string {
	return details(v, "UUID")
}
