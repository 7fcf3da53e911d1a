package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PlatformKind identifies an external publishing target type.
type PlatformKind string

const (
	PlatformWebflow   PlatformKind = "webflow"
	PlatformWordPress PlatformKind = "wordpress"
)

func (p PlatformKind) Valid() bool {
	switch p {
	case PlatformWebflow, PlatformWordPress:
		return true
	}
	return false
}

// PublishingRecord tracks one (post, platform, site) publishing relationship.
// PlatformPostID is set once the platform has created an item; operations
// that act on an existing platform item (unpublish, republish, update,
// delete-from-platform) are illegal while it is empty.
type PublishingRecord struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID          uuid.UUID        `gorm:"type:uuid;not null;index" json:"org_id"`
	PostID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"post_id"`
	Platform       PlatformKind     `gorm:"size:50;not null;index" json:"platform"`
	SiteID         string           `gorm:"size:255" json:"site_id"`
	CollectionID   string           `gorm:"size:255" json:"collection_id"`
	Status         PublishingStatus `gorm:"size:50;not null;default:'pending';index" json:"status"`
	PlatformPostID string           `gorm:"size:255;index" json:"platform_post_id"`
	PlatformURL    string           `gorm:"size:2048" json:"platform_url"`
	IsDraft        bool             `gorm:"default:true" json:"is_draft"`
	PlatformError  string           `gorm:"type:text" json:"platform_error"`
	PublishedAt    *time.Time       `json:"published_at"`
	ScheduledAt    *time.Time       `json:"scheduled_at"`
	CreatedAt      time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt   `gorm:"index" json:"deleted_at"`
}

// HasPlatformPost reports whether the platform has an item for this record.
func (r *PublishingRecord) HasPlatformPost() bool {
	return r.PlatformPostID != ""
}
