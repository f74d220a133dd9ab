package node

import (
	"strconv"
	"strings"
)

// Fingerprint identifies a physical endpoint. Two nodes with equal
// fingerprints are duplicates regardless of transport parameters or label.
type Fingerprint struct {
	Protocol Protocol
	Host     string
	Port     int
	Key      string
}

func (f Fingerprint) String() string {
	var b strings.Builder
	b.WriteString(string(f.Protocol))
	b.WriteByte('|')
	b.WriteString(f.Host)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(f.Port))
	b.WriteByte('|')
	b.WriteString(f.Key)
	return b.String()
}

// FingerprintOf derives the identity of n under p.
func FingerprintOf(n Node, p Policy) Fingerprint {
	e := n.Endpoint()
	key := n.Credential()
	if p.SSIdentityIncludesCipher {
		switch v := n.(type) {
		case *Shadowsocks:
			key = v.Cipher + ":" + v.Password
		case *ShadowsocksR:
			key = v.Method + ":" + v.Password
		}
	}
	return Fingerprint{
		Protocol: n.Protocol(),
		Host:     strings.ToLower(e.Host),
		Port:     e.Port,
		Key:      key,
	}
}
