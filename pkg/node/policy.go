package node

import "strings"

// DefaultMinLength is the shortest candidate worth parsing.
const DefaultMinLength = 15

// Policy holds the tunable rejection and identity heuristics.
type Policy struct {
	MinLength int
	// PlaceholderHosts are compared case-insensitively. Loopback, unspecified
	// and ${...} template hosts are always rejected.
	PlaceholderHosts []string
	// SSIdentityIncludesCipher makes the shadowsocks fingerprint key
	// "cipher:password" instead of "password". Applies to ssr as well.
	SSIdentityIncludesCipher bool
	// RejectLabelKeywords drops candidates whose display name advertises
	// expiry or traffic quota instead of naming an endpoint.
	RejectLabelKeywords []string
}

func DefaultPolicy() Policy {
	return Policy{
		MinLength:        DefaultMinLength,
		PlaceholderHosts: []string{"server", "host", "example.com", "www.example.com", "localhost", "your_server_ip"},
		RejectLabelKeywords: []string{
			"过期", "流量", "耗尽", "到期", "0gb", "剩余", "官网", "维护", "重置",
			"expire", "traffic",
		},
	}
}

func lowerSet(in []string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}
