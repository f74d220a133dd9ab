package utils

import (
	"net"
	"strings"
)

func IsIPv6(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false // not a valid IP address
	}
	return ip.To4() == nil // if To4() returns nil, it's not an IPv4 address, hence it's IPv6
}

// BracketIPv6 wraps a bare IPv6 literal in brackets for use in a host:port pair.
func BracketIPv6(host string) string {
	if strings.HasPrefix(host, "[") {
		return host
	}
	if IsIPv6(host) {
		return "[" + host + "]"
	}
	return host
}

// IsLocalIP reports loopback and unspecified addresses. Brackets are ignored.
func IsLocalIP(host string) bool {
	ip := net.ParseIP(strings.Trim(host, "[]"))
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsUnspecified()
}
