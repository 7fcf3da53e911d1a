package service

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/scribeflow/scribeflow/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// A named in-memory database with a shared cache, so every pooled
	// connection sees the same schema; busy_timeout makes concurrent writers
	// queue instead of erroring.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=busy_timeout(10000)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func newTestQueueService(t *testing.T) (*QueueService, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	logger := zap.NewNop()
	monitoring := NewMonitoringService(db, logger)
	materializer := NewMaterializer(db, logger)
	return NewQueueService(db, logger, materializer, monitoring), db
}

func seedQueueItem(t *testing.T, db *gorm.DB, orgID uuid.UUID, status models.QueueStatus) *models.QueueItem {
	t.Helper()

	item := &models.QueueItem{
		ID:        uuid.New(),
		OrgID:     orgID,
		CreatedBy: uuid.New(),
		Status:    status,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func seedPost(t *testing.T, db *gorm.DB, orgID uuid.UUID) *models.Post {
	t.Helper()

	post := &models.Post{
		ID:      uuid.New(),
		OrgID:   orgID,
		Title:   "Shipping a Go Service",
		Slug:    "shipping-a-go-service",
		Content: "## Intro\n\nA post about shipping Go services to production.",
		Excerpt: "A post about shipping Go services.",
		Status:  "draft",
		SEOMetadata: datatypes.JSONMap{
			"title": "Shipping a Go Service",
		},
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
