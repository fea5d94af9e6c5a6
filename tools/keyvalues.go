package tools

import (
	"bufio"
	"strings"
)

// ParseKeyValues parses "Key:   value" lines as printed by pdfinfo. Keys are
// lower-cased; lines without a colon are skipped and the first occurrence of
// a key wins.
func ParseKeyValues(out string) map[string]string {
	values := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if _, exists := values[key]; exists {
			continue
		}
		values[key] = strings.TrimSpace(value)
	}
	return values
}
