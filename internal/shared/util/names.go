package util

import (
	"errors"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^\w.\-]+`)

// SafeName collapses every run of characters outside [A-Za-z0-9_.-] into "_".
func SafeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// Truncate returns at most max runes of s.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
