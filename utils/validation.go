package utils

import "strings"

func IsValidHostOrSNI(value string) bool {
	return !strings.ContainsAny(value, "[]()")
}

// IsValidPort reports whether p lies within the TCP/UDP port range.
func IsValidPort(p int) bool {
	return p >= 1 && p <= 65535
}
