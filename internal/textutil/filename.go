package textutil

import (
	"strings"
	"unicode"
)

// Path separators and wildcards become dashes; other reserved characters
// are dropped.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes name safe as a single path segment. Reserved
// characters are replaced or removed, control characters are dropped and
// runs of whitespace collapse to one underscore. Leading dots and dashes are
// trimmed so the result is neither hidden nor read as a flag. An empty
// result becomes fallback.
func SanitizeFileName(name, fallback string) string {
	name = fileNameReplacer.Replace(strings.TrimSpace(name))

	var b strings.Builder
	space := false
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			if !space {
				b.WriteByte('_')
			}
			space = true
			continue
		case unicode.IsControl(r):
			continue
		}
		space = false
		b.WriteRune(r)
	}

	out := strings.TrimLeft(b.String(), ".-")
	if out == "" {
		return fallback
	}
	return out
}
