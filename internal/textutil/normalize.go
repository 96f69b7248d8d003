package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// NormalizeTitle returns the canonical form used for event uniqueness checks.
func NormalizeTitle(title string) string {
	return CollapseWhitespace(norm.NFC.String(title))
}

// CollapseWhitespace trims s and replaces internal whitespace runs with one space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Label turns an upper snake case tag such as RENDER_COMPLETE into "Render Complete".
func Label(tag string) string {
	words := strings.Fields(strings.ReplaceAll(tag, "_", " "))
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(strings.Join(words, " ")))
}

// Truncate shortens s to at most limit runes, appending "..." when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
