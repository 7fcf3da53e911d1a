package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/pkg/util"
)

// Materializer turns a completed queue item into a draft post. It runs at
// most once per item: the post_id write is conditional on the column still
// being NULL, so retried transitions and concurrent callers collapse into
// the single existing draft.
type Materializer struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewMaterializer(db *gorm.DB, logger *zap.Logger) *Materializer {
	return &Materializer{
		db:     db,
		logger: logger,
	}
}

// Materialize derives the draft fields from the generated content and
// inserts the post, recording its id back on the queue item. If a draft
// already exists for the item, it is returned unchanged.
func (m *Materializer) Materialize(ctx context.Context, item *models.QueueItem) (*models.Post, error) {
	if item.GeneratedTitle == "" || item.GeneratedContent == "" {
		return nil, ErrContentNotReady
	}
	if item.PostID != nil {
		return m.existingPost(ctx, *item.PostID)
	}

	meta := map[string]interface{}(item.GenerationMetadata)
	excerpt := deriveExcerpt(item.GeneratedContent, meta)
	featuredImage := deriveFeaturedImage(item.GeneratedContent, meta)
	wordCount := countWords(item.GeneratedContent)

	post := &models.Post{
		ID:               uuid.New(),
		OrgID:            item.OrgID,
		QueueItemID:      &item.ID,
		Title:            item.GeneratedTitle,
		Slug:             util.GenerateSlug(item.GeneratedTitle),
		Content:          item.GeneratedContent,
		Excerpt:          excerpt,
		FeaturedImageURL: featuredImage,
		WordCount:        wordCount,
		ReadTimeMinutes:  readTimeMinutes(wordCount),
		SEOMetadata:      buildSEOMetadata(item.GeneratedTitle, excerpt, featuredImage, meta),
		ContentMetadata:  buildContentMetadata(item.GeneratedContent, meta),
		Status:           "draft",
	}

	// Best-effort enrichment; a mapping failure must not block the draft.
	if mappings := m.resolveFieldMappings(item); mappings != nil {
		post.FieldMappings = mappings
	}

	itemMetadata := models.MergeJSONMap(item.Metadata, map[string]interface{}{
		"post_id": post.ID.String(),
	})

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.QueueItem{}).
			Where("id = ? AND post_id IS NULL", item.ID).
			Updates(map[string]interface{}{
				"post_id":  post.ID,
				"metadata": itemMetadata,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Another caller materialized first.
			return ErrConcurrentUpdate
		}
		return tx.Create(post).Error
	})
	if errors.Is(err, ErrConcurrentUpdate) {
		var fresh models.QueueItem
		if loadErr := m.db.WithContext(ctx).First(&fresh, "id = ?", item.ID).Error; loadErr != nil {
			return nil, loadErr
		}
		if fresh.PostID == nil {
			return nil, err
		}
		return m.existingPost(ctx, *fresh.PostID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	m.logger.Info("Draft materialized",
		zap.String("queue_item_id", item.ID.String()),
		zap.String("post_id", post.ID.String()),
		zap.Int("word_count", post.WordCount))

	return post, nil
}

func (m *Materializer) existingPost(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := m.db.WithContext(ctx).First(&post, "id = ?", postID).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

// blogFields maps each draft field to the platform field names it commonly
// appears under, used by the auto-detection pass.
var blogFields = map[string][]string{
	"title":          {"title", "name", "post-title", "headline"},
	"slug":           {"slug", "url-slug", "permalink"},
	"content":        {"content", "post-body", "body", "rich-text", "article-body"},
	"excerpt":        {"excerpt", "post-summary", "summary", "description"},
	"featured_image": {"featured-image", "main-image", "thumbnail", "hero-image"},
}

// defaultFieldMappings is the built-in fallback used when neither an org
// configuration nor auto-detection produces a mapping.
var defaultFieldMappings = map[string]interface{}{
	"title":          "name",
	"slug":           "slug",
	"content":        "post-body",
	"excerpt":        "post-summary",
	"featured_image": "main-image",
}

// resolveFieldMappings picks a platform field mapping: an explicit org
// configuration wins, then an auto-detection pass over the platform field
// list, then the built-in default.
func (m *Materializer) resolveFieldMappings(item *models.QueueItem) map[string]interface{} {
	if item.Metadata != nil {
		if configured, ok := item.Metadata["field_mappings"].(map[string]interface{}); ok && len(configured) > 0 {
			return configured
		}

		if fields, ok := item.Metadata["platform_fields"].([]interface{}); ok && len(fields) > 0 {
			if detected := autoDetectFieldMappings(fields); len(detected) > 0 {
				return detected
			}
		}
	}

	mappings := map[string]interface{}{}
	for k, v := range defaultFieldMappings {
		mappings[k] = v
	}
	return mappings
}

// autoDetectFieldMappings matches blog field names against the platform's
// declared field slugs.
func autoDetectFieldMappings(platformFields []interface{}) map[string]interface{} {
	available := map[string]bool{}
	for _, field := range platformFields {
		switch f := field.(type) {
		case string:
			available[f] = true
		case map[string]interface{}:
			if slug, ok := f["slug"].(string); ok {
				available[slug] = true
			}
		}
	}

	detected := map[string]interface{}{}
	for blogField, candidates := range blogFields {
		for _, candidate := range candidates {
			if available[candidate] {
				detected[blogField] = candidate
				break
			}
		}
	}
	return detected
}
