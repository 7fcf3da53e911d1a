package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProgressUpdate is one timestamped stage event in a queue item's history.
type ProgressUpdate struct {
	Stage      string    `json:"stage"`
	Percentage int       `json:"percentage"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// QueueItem is one content generation request and its lifecycle state. The
// row is the system of record for status; services re-read it before every
// transition instead of holding copies in memory.
type QueueItem struct {
	ID                    uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	OrgID                 uuid.UUID         `gorm:"type:uuid;not null;index" json:"org_id"`
	CreatedBy             uuid.UUID         `gorm:"type:uuid;not null;index" json:"created_by"`
	Status                QueueStatus       `gorm:"size:50;not null;default:'queued';index" json:"status"`
	Priority              int               `gorm:"default:0" json:"priority"`
	ProgressPercentage    int               `gorm:"default:0" json:"progress_percentage"`
	CurrentStage          string            `gorm:"size:255" json:"current_stage"`
	ProgressUpdates       datatypes.JSON    `gorm:"type:jsonb" json:"progress_updates"`
	GenerationError       string            `gorm:"type:text" json:"generation_error"`
	GeneratedTitle        string            `gorm:"size:500" json:"generated_title"`
	GeneratedContent      string            `gorm:"type:text" json:"generated_content"`
	GenerationMetadata    datatypes.JSONMap `gorm:"type:jsonb" json:"generation_metadata"`
	Metadata              datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	BackendJobID          *string           `gorm:"size:255;index" json:"backend_job_id"`
	PostID                *uuid.UUID        `gorm:"type:uuid;index" json:"post_id"`
	GenerationStartedAt   *time.Time        `json:"generation_started_at"`
	GenerationCompletedAt *time.Time        `json:"generation_completed_at"`
	CreatedAt             time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt             gorm.DeletedAt    `gorm:"index" json:"deleted_at"`

	Post *Post `gorm:"foreignKey:PostID" json:"post,omitempty"`
}

// ProgressHistory decodes the append-only stage event list.
func (q *QueueItem) ProgressHistory() []ProgressUpdate {
	if len(q.ProgressUpdates) == 0 {
		return nil
	}
	var updates []ProgressUpdate
	if err := json.Unmarshal(q.ProgressUpdates, &updates); err != nil {
		return nil
	}
	return updates
}

// AppendProgress returns the history with the given events appended, encoded
// for storage. The stored list is never truncated or reordered.
func (q *QueueItem) AppendProgress(events ...ProgressUpdate) (datatypes.JSON, error) {
	updates := q.ProgressHistory()
	updates = append(updates, events...)
	encoded, err := json.Marshal(updates)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}
