// Package security sanitises user-supplied names before they reach file
// names, HTTP headers or stored records.
package security

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxFilenameLen bounds a sanitised name, extension included.
const maxFilenameLen = 128

// SanitizeFilename reduces an uploaded or user-supplied file name to its base
// name made of ASCII letters, digits, dot, underscore and dash. Runs of other
// characters collapse to one underscore. An empty result becomes "unknown".
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(name)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		if b.Len() >= maxFilenameLen {
			break
		}
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_') {
			b.WriteRune(r)
			lastUnderscore = r == '_'
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
