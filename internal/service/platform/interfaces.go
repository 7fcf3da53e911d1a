package platform

import (
	"context"
	"fmt"

	"github.com/scribeflow/scribeflow/internal/models"
)

// Target identifies where on a platform an item lives.
type Target struct {
	SiteID       string
	CollectionID string
}

// Content is the platform-agnostic draft payload.
type Content struct {
	Title            string
	Slug             string
	Content          string
	Excerpt          string
	FeaturedImageURL string
	SEOMetadata      map[string]interface{}
	FieldMappings    map[string]interface{}
}

// Item is the platform's view of a published or draft item.
type Item struct {
	ID      string
	URL     string
	IsDraft bool
}

// Client is the capability surface every publishing target implements.
type Client interface {
	Kind() models.PlatformKind

	CreateItem(ctx context.Context, target Target, content Content, asDraft bool) (*Item, error)
	UpdateItem(ctx context.Context, target Target, itemID string, content Content) (*Item, error)
	SetLive(ctx context.Context, target Target, itemID string) (*Item, error)
	SetDraft(ctx context.Context, target Target, itemID string) (*Item, error)
	DeleteItem(ctx context.Context, target Target, itemID string) error
	GetItem(ctx context.Context, target Target, itemID string) (*Item, error)
}

// OperationError is a platform call failure, surfaced verbatim to the
// operator for manual retry.
type OperationError struct {
	Platform   models.PlatformKind
	Operation  string
	StatusCode int
	Message    string
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s failed with status %d: %s", e.Platform, e.Operation, e.StatusCode, e.Message)
}

// FromPost builds the platform payload from a draft post.
func FromPost(post *models.Post) Content {
	return Content{
		Title:            post.Title,
		Slug:             post.Slug,
		Content:          post.Content,
		Excerpt:          post.Excerpt,
		FeaturedImageURL: post.FeaturedImageURL,
		SEOMetadata:      post.SEOMetadata,
		FieldMappings:    post.FieldMappings,
	}
}
