package node

import "net/url"

var hysteriaParams = allowList(
	"protocol", "peer", "sni", "insecure", "upmbps", "downmbps", "alpn", "obfs", "obfsParam",
)

// Hysteria is a hysteria v1 node. The auth token comes from the userinfo
// or, in the older form, from the auth query parameter.
type Hysteria struct {
	base
	Auth string
}

func (h *Hysteria) Protocol() Protocol { return ProtocolHysteria }
func (h *Hysteria) Credential() string { return h.Auth }

func (h *Hysteria) parse(body string) (string, error) {
	p := splitURI(body)
	h.Auth = unescape(p.userinfo, false)
	if h.Auth == "" {
		h.Auth = rawQueryValue(p.rawQuery, "auth")
	}
	if h.Auth == "" {
		h.Auth = rawQueryValue(p.rawQuery, "auth_str")
	}
	if h.Auth == "" {
		return "", reject(ReasonMissingField, "hysteria auth")
	}
	if err := h.fill(p, defaultPort, hysteriaParams); err != nil {
		return "", err
	}
	return p.label(), nil
}

func (h *Hysteria) Render(label string) (string, error) {
	if err := h.validate(); err != nil {
		return "", err
	}
	if h.Auth == "" {
		return "", reject(ReasonMissingField, "hysteria auth")
	}
	return h.renderURL("hysteria", url.User(h.Auth), label), nil
}

func (h *Hysteria) DetailsStr() string {
	return details(h, "Auth")
}
