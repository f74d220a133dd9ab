package node

import "net/url"

var hysteria2Params = allowList(
	"sni", "obfs", "obfs-password", "insecure", "pinSHA256", "alpn", "mport",
)

type Hysteria2 struct {
	base
	Password string
}

func (h *Hysteria2) Protocol() Protocol { return ProtocolHysteria2 }
func (h *Hysteria2) Credential() string { return h.Password }

// parse keeps the whole userinfo as the password, so user:pass auth
// survives verbatim.
func (h *Hysteria2) parse(body string) (string, error) {
	p := splitURI(body)
	h.Password = unescape(p.userinfo, false)
	if h.Password == "" {
		return "", reject(ReasonMissingField, "hysteria2 password")
	}
	if err := h.fill(p, defaultPort, hysteria2Params); err != nil {
		return "", err
	}
	return p.label(), nil
}

func (h *Hysteria2) Render(label string) (string, error) {
	if err := h.validate(); err != nil {
		return "", err
	}
	if h.Password == "" {
		return "", reject(ReasonMissingField, "hysteria2 password")
	}
	return h.renderURL("hysteria2", url.User(h.Password), label), nil
}

func (h *Hysteria2) DetailsStr() string {
	return details(h, "Password")
}
