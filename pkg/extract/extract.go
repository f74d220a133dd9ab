// Package extract turns fetched source documents into raw link candidates.
package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lilendian0x00/nodeharvest/utils"
)

// prefixes are checked longest first so "ssr://" is not mistaken for "ss://".
var prefixes = []string{
	"hysteria2://", "hysteria://", "trojan://", "vmess://", "vless://",
	"tuic://", "hy2://", "ssr://", "ss://",
}

// linkPattern has no word boundary so links glued to preceding text are
// still found. Alternation is leftmost-first, which prefers ssr over ss.
var linkPattern = regexp.MustCompile("(?i)(?:hysteria2|hysteria|trojan|vmess|vless|tuic|hy2|ssr|ss)://[^\\s<>\"'`,]+")

// HasLink is the cheap check used to skip decoding of plain-text bodies.
func HasLink(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range prefixes {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// DecodeBlob returns text unchanged when it already contains links.
// Otherwise it tries to read the whole body as one base64 payload and
// returns the decoded text, or the original text when decoding fails.
func DecodeBlob(text string) string {
	if HasLink(text) {
		return text
	}
	compact := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	if compact == "" {
		return text
	}
	decoded, err := utils.Base64Decode(compact)
	if err != nil || !utf8.Valid(decoded) {
		return text
	}
	return string(decoded)
}

// Links returns every candidate in text in order of appearance.
// Duplicates are kept.
func Links(text string) []string {
	return linkPattern.FindAllString(text, -1)
}

// Candidates decodes a document and extracts its candidates in one step.
func Candidates(body string) []string {
	return Links(DecodeBlob(body))
}
