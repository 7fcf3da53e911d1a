package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateSlug(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		expected string
	}{
		{"simple", "Hello World", "hello-world"},
		{"punctuation", "Go, Gin & Gorm: A Guide!", "go-gin-gorm-a-guide"},
		{"leading trailing", "  --Spaces--  ", "spaces"},
		{"already slug", "already-a-slug", "already-a-slug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, GenerateSlug(tt.title))
		})
	}
}

func TestGenerateSlugLimitsLength(t *testing.T) {
	long := strings.Repeat("word ", 40)
	slug := GenerateSlug(long)
	assert.LessOrEqual(t, len(slug), 80)
	assert.False(t, strings.HasSuffix(slug, "-"))
}

func TestTruncateAtSentence(t *testing.T) {
	assert.Equal(t, "short", TruncateAtSentence("short", 100))

	text := "The first sentence ends right here. The second sentence runs much longer than the limit allows."
	got := TruncateAtSentence(text, 40)
	assert.Equal(t, "The first sentence ends right here.", got)

	noBoundary := strings.Repeat("word ", 30)
	got = TruncateAtSentence(noBoundary, 40)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 43)
}
