// Package text provides best-effort helpers for inspecting file content.
package text

import (
	"os"
	"regexp"
)

// ScanForPattern reports whether the file at path matches re.
// The read is best-effort: missing, unreadable, or binary files are
// treated as a non-match rather than an error, so a single bad file
// never aborts a scan over many files. Matching happens on raw bytes,
// which tolerates invalid UTF-8.
func ScanForPattern(path string, re *regexp.Regexp) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return re.Match(data)
}
