package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post is a materialized draft document, created once when a queue item's
// generation completes.
type Post struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"org_id"`
	QueueItemID      *uuid.UUID        `gorm:"type:uuid;index" json:"queue_item_id"`
	Title            string            `gorm:"not null;size:500" json:"title"`
	Slug             string            `gorm:"size:255;index" json:"slug"`
	Content          string            `gorm:"type:text" json:"content"`
	Excerpt          string            `gorm:"type:text" json:"excerpt"`
	FeaturedImageURL string            `gorm:"size:2048" json:"featured_image_url"`
	WordCount        int               `gorm:"default:0" json:"word_count"`
	ReadTimeMinutes  int               `gorm:"default:0" json:"read_time_minutes"`
	SEOMetadata      datatypes.JSONMap `gorm:"type:jsonb" json:"seo_metadata"`
	ContentMetadata  datatypes.JSONMap `gorm:"type:jsonb" json:"content_metadata"`
	FieldMappings    datatypes.JSONMap `gorm:"type:jsonb" json:"field_mappings"`
	Status           string            `gorm:"size:50;default:'draft'" json:"status"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt    `gorm:"index" json:"deleted_at"`
}
