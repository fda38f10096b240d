package utils

import (
	"path/filepath"
	"strings"
)

// MatchExtension reports whether path ends in one of extensions, compared
// case-insensitively with or without the leading dot. An empty list matches
// every path.
func MatchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}
