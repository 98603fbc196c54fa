// Package mention extracts @name tokens from message text.
package mention

import (
	"regexp"
	"strings"
)

// \B перед @ отсекает e-mail адреса вида bob@example.com.
var tokenRe = regexp.MustCompile(`\B@(\w[\w.\-]*)`)

// Extract returns the mention tokens of text in order of first appearance,
// de-duplicated case-insensitively. The leading @ is not included.
func Extract(text string) []string {
	matches := tokenRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		tok := strings.TrimRight(m[1], ".-")
		if tok == "" {
			continue
		}
		key := strings.ToLower(tok)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, tok)
	}
	return out
}
