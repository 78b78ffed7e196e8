package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// Ellipsis marks truncated text.
const Ellipsis = "..."

// CollapseWhitespace replaces whitespace runs (including newlines) with a
// single space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Prefix returns at most limit runes of s.
func Prefix(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

// Truncate shortens s to limit runes and appends Ellipsis when anything was cut.
func Truncate(s string, limit int) string {
	cut := Prefix(s, limit)
	if len(cut) == len(s) {
		return s
	}
	return cut + Ellipsis
}

// ContainsFold reports whether needle occurs in haystack under Unicode case folding.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	folder := cases.Fold()
	return strings.Contains(folder.String(haystack), folder.String(needle))
}

// FirstContainedFold returns the first needle contained in haystack.
func FirstContainedFold(haystack string, needles []string) (string, bool) {
	if len(needles) == 0 {
		return "", false
	}
	folder := cases.Fold()
	folded := folder.String(haystack)
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(folded, folder.String(needle)) {
			return needle, true
		}
	}
	return "", false
}
