package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveExcerptPrefersSupplied(t *testing.T) {
	got := deriveExcerpt("# Heading\n\nBody text.", map[string]interface{}{
		"excerpt": "Hand-written summary.",
	})
	assert.Equal(t, "Hand-written summary.", got)
}

func TestDeriveExcerptStripsMarkup(t *testing.T) {
	content := "# Title\n\n![alt](https://cdn.example.com/a.png)\n\nThis is the *body* of the post. It keeps going for a while."
	got := deriveExcerpt(content, nil)

	assert.NotContains(t, got, "#")
	assert.NotContains(t, got, "*")
	assert.NotContains(t, got, "https://cdn.example.com/a.png")
	assert.Contains(t, got, "This is the body of the post")
}

func TestDeriveFeaturedImage(t *testing.T) {
	meta := map[string]interface{}{"featured_image": "https://cdn.example.com/hero.png"}
	assert.Equal(t, "https://cdn.example.com/hero.png", deriveFeaturedImage("no images here", meta))

	markdown := "intro\n\n![hero](https://cdn.example.com/first.png)\n\n![second](https://cdn.example.com/second.png)"
	assert.Equal(t, "https://cdn.example.com/first.png", deriveFeaturedImage(markdown, nil))

	html := `<p>intro</p><img src="https://cdn.example.com/tag.png" alt="">`
	assert.Equal(t, "https://cdn.example.com/tag.png", deriveFeaturedImage(html, nil))

	assert.Equal(t, "", deriveFeaturedImage("plain text", nil))
}

func TestReadTimeMinutes(t *testing.T) {
	assert.Equal(t, 0, readTimeMinutes(0))
	assert.Equal(t, 1, readTimeMinutes(1))
	assert.Equal(t, 1, readTimeMinutes(200))
	assert.Equal(t, 2, readTimeMinutes(201))
	assert.Equal(t, 5, readTimeMinutes(1000))
}

func TestBuildSEOMetadataFallbacks(t *testing.T) {
	seo := buildSEOMetadata("A Title", "An excerpt.", "https://cdn.example.com/hero.png", nil)

	assert.Equal(t, "A Title", seo["title"])
	assert.Equal(t, "An excerpt.", seo["description"])
	assert.Equal(t, "A Title", seo["og_title"])
	assert.Equal(t, "https://cdn.example.com/hero.png", seo["og_image"])
	assert.Equal(t, "summary_large_image", seo["twitter_card"])
}

func TestBuildSEOMetadataSuppliedWins(t *testing.T) {
	meta := map[string]interface{}{
		"seo_title": "Custom SEO Title",
		"og_image":  "https://cdn.example.com/og.png",
	}
	seo := buildSEOMetadata("A Title", "An excerpt.", "https://cdn.example.com/hero.png", meta)

	assert.Equal(t, "Custom SEO Title", seo["title"])
	assert.Equal(t, "https://cdn.example.com/og.png", seo["og_image"])
}

func TestBuildContentMetadata(t *testing.T) {
	content := "# One\n\n## Two\n\n## Three\n\nSee [docs](/docs/setup) and [anchor](#two) and [ext](https://example.com)."
	meta := buildContentMetadata(content, map[string]interface{}{
		"generated_images": []interface{}{"https://cdn.example.com/a.png"},
	})

	headings := meta["heading_counts"].(map[string]int)
	assert.Equal(t, 1, headings["h1"])
	assert.Equal(t, 2, headings["h2"])

	links := meta["internal_links"].([]string)
	assert.ElementsMatch(t, []string{"/docs/setup", "#two"}, links)

	images := meta["generated_images"].([]interface{})
	assert.Len(t, images, 1)
}

func TestDerivationIsIdempotent(t *testing.T) {
	content := "# Post\n\n![hero](https://cdn.example.com/a.png)\n\nBody text that settles the matter."

	first := deriveExcerpt(content, nil)
	second := deriveExcerpt(first, map[string]interface{}{"excerpt": first})
	assert.Equal(t, first, second)

	img := deriveFeaturedImage(content, nil)
	assert.Equal(t, img, deriveFeaturedImage(content, map[string]interface{}{"featured_image": img}))
}
