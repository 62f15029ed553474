// Package security holds helpers for turning untrusted input into safe
// filesystem names.
package security

import "strings"

// maxFilenameLen bounds the sanitized result.
const maxFilenameLen = 128

// SanitizeFilename turns an arbitrary identifier (a camera id read from a
// detection log, say) into a single path element. Runs of characters other
// than ASCII letters, digits, '.', '_' and '-' become one underscore.
// Leading and trailing dots and underscores are dropped so the result can
// never be "." or "..". An empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		if isFilenameRune(r) {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

func isFilenameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
