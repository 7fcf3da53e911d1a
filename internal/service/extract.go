package service

import (
	"regexp"
	"strings"

	"github.com/scribeflow/scribeflow/pkg/util"
)

// Content derivation helpers for draft materialization. Each one passes a
// supplied metadata value through unchanged and only computes a fallback, so
// running the whole pass twice over the same input yields the same draft.

const (
	excerptMaxLength  = 300
	wordsPerMinute    = 200
	seoTitleMaxLength = 60
	seoDescMaxLength  = 160
)

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
	htmlImageRe     = regexp.MustCompile(`<img[^>]+src=["']([^"']+)["']`)
	headingRe       = regexp.MustCompile(`(?m)^(#{1,6})\s+`)
	markdownLinkRe  = regexp.MustCompile(`[^!]\[[^\]]*\]\(([^)\s]+)[^)]*\)`)
	markupStripRe   = regexp.MustCompile("[#*_`>\\[\\]()!]")
	whitespaceRe    = regexp.MustCompile(`\s+`)
)

func metaString(meta map[string]interface{}, key string) string {
	if meta == nil {
		return ""
	}
	if value, ok := meta[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

// deriveExcerpt prefers a supplied excerpt, else truncates the content.
func deriveExcerpt(content string, meta map[string]interface{}) string {
	if excerpt := metaString(meta, "excerpt"); excerpt != "" {
		return excerpt
	}

	plain := markdownImageRe.ReplaceAllString(content, "")
	plain = htmlImageRe.ReplaceAllString(plain, "")
	plain = markupStripRe.ReplaceAllString(plain, "")
	plain = whitespaceRe.ReplaceAllString(plain, " ")
	return util.TruncateAtSentence(plain, excerptMaxLength)
}

// deriveFeaturedImage prefers supplied metadata, else the first embedded
// image in the content.
func deriveFeaturedImage(content string, meta map[string]interface{}) string {
	if image := metaString(meta, "featured_image"); image != "" {
		return image
	}
	if match := markdownImageRe.FindStringSubmatch(content); match != nil {
		return match[1]
	}
	if match := htmlImageRe.FindStringSubmatch(content); match != nil {
		return match[1]
	}
	return ""
}

func countWords(content string) int {
	return len(strings.Fields(content))
}

// readTimeMinutes is ceil(words / 200), never below one minute for
// non-empty content.
func readTimeMinutes(wordCount int) int {
	if wordCount == 0 {
		return 0
	}
	return (wordCount + wordsPerMinute - 1) / wordsPerMinute
}

// buildSEOMetadata assembles the SEO bundle, falling back to title/excerpt
// for every platform-specific field that is absent.
func buildSEOMetadata(title, excerpt, featuredImage string, meta map[string]interface{}) map[string]interface{} {
	seoTitle := metaString(meta, "seo_title")
	if seoTitle == "" {
		seoTitle = util.TruncateAtSentence(title, seoTitleMaxLength)
	}
	seoDescription := metaString(meta, "seo_description")
	if seoDescription == "" {
		seoDescription = util.TruncateAtSentence(excerpt, seoDescMaxLength)
	}

	ogImage := metaString(meta, "og_image")
	if ogImage == "" {
		ogImage = featuredImage
	}

	return map[string]interface{}{
		"title":          seoTitle,
		"description":    seoDescription,
		"og_title":       firstNonEmpty(metaString(meta, "og_title"), seoTitle),
		"og_description": firstNonEmpty(metaString(meta, "og_description"), seoDescription),
		"og_image":       ogImage,
		"twitter_card":   firstNonEmpty(metaString(meta, "twitter_card"), "summary_large_image"),
		"twitter_title":  firstNonEmpty(metaString(meta, "twitter_title"), seoTitle),
		"twitter_image":  ogImage,
	}
}

// buildContentMetadata summarizes the content structure: heading counts,
// internal links, and the list of generated images.
func buildContentMetadata(content string, meta map[string]interface{}) map[string]interface{} {
	headings := map[string]int{}
	for _, match := range headingRe.FindAllStringSubmatch(content, -1) {
		level := "h" + string(rune('0'+len(match[1])))
		headings[level]++
	}

	var internalLinks []string
	for _, match := range markdownLinkRe.FindAllStringSubmatch(content, -1) {
		link := match[1]
		if strings.HasPrefix(link, "/") || strings.HasPrefix(link, "#") {
			internalLinks = append(internalLinks, link)
		}
	}

	var generatedImages []interface{}
	if meta != nil {
		if images, ok := meta["generated_images"].([]interface{}); ok {
			generatedImages = images
		}
	}

	return map[string]interface{}{
		"heading_counts":   headings,
		"internal_links":   internalLinks,
		"generated_images": generatedImages,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
