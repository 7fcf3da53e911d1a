package util

import (
	"regexp"
	"strings"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug creates a URL-friendly slug from title
func GenerateSlug(title string) string {
	// Convert to lowercase
	slug := strings.ToLower(title)

	// Replace spaces and special characters with hyphens
	slug = slugRe.ReplaceAllString(slug, "-")

	// Remove leading/trailing hyphens
	slug = strings.Trim(slug, "-")

	// Limit length
	if len(slug) > 80 {
		slug = slug[:80]
		if idx := strings.LastIndex(slug, "-"); idx > 0 {
			slug = slug[:idx]
		}
		slug = strings.Trim(slug, "-")
	}

	return slug
}

// TruncateAtSentence shortens s to at most max runes, preferring to cut at a
// sentence boundary and falling back to a word boundary with an ellipsis.
func TruncateAtSentence(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	window := string(runes[:max])
	if idx := strings.LastIndexAny(window, ".!?"); idx > max/2 {
		return strings.TrimSpace(window[:idx+1])
	}
	if idx := strings.LastIndex(window, " "); idx > 0 {
		window = window[:idx]
	}
	return strings.TrimSpace(window) + "..."
}
