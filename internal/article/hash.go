package article

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeTitle lower-cases a title and collapses whitespace runs.
func NormalizeTitle(title string) string {
	lowered := cases.Lower(language.Und).String(title)
	return strings.Join(strings.Fields(lowered), " ")
}

// HashKey returns the hex sha256 content key for a title.
func HashKey(title string) string {
	sum := sha256.Sum256([]byte(NormalizeTitle(title)))
	return hex.EncodeToString(sum[:])
}
