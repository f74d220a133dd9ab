package utils

import (
	"bufio"
	"encoding/base64"
	"os"
	"strings"
)

var b64Encodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// Base64Decode accepts standard and URL-safe alphabets, padded or not.
func Base64Decode(b64 string) ([]byte, error) {
	b64 = strings.TrimSpace(b64)
	padded := b64
	if pad := len(b64) % 4; pad != 0 {
		padded += strings.Repeat("=", 4-pad)
	}

	var firstErr error
	for i, enc := range b64Encodings {
		in := padded
		if i >= 2 {
			in = strings.TrimRight(b64, "=")
		}
		b, err := enc.DecodeString(in)
		if err == nil {
			return b, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

// ParseFileByNewline returns the trimmed, non-empty lines of a file.
// Lines starting with '#' are comments.
func ParseFileByNewline(fileName string) ([]string, error) {
	file, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	scanner.Split(bufio.ScanLines)

	var lines []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return lines, err
	}
	return lines, nil
}

func WriteIntoFile(fileName string, data []byte) error {
	var err error
	switch fileName {
	case "-":
		_, err = os.Stdout.Write(data)
	default:
		err = os.WriteFile(fileName, data, 0644)
	}
	if err != nil {
		return err
	}
	return nil
}
