package history

import "strings"

var commentOpeners = []string{"//", "#", "/*", "'''", `"""`, "*"}

// UselessLine reports whether a deleted line carries no code worth blaming:
// blank lines and lines that only open or continue a comment.
func UselessLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}

	for _, prefix := range commentOpeners {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}

	return false
}
