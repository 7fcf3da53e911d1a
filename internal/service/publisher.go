package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service/platform"
)

// PublishingService coordinates publishing records against the external
// platforms. Every operation re-reads the record, validates the requested
// transition, performs the platform call, and persists the platform's
// reported outcome under a compare-and-set on status, so two operators
// racing on the same record cannot silently overwrite each other.
type PublishingService struct {
	db         *gorm.DB
	logger     *zap.Logger
	registry   *platform.Registry
	monitoring *MonitoringService
}

func NewPublishingService(db *gorm.DB, logger *zap.Logger, registry *platform.Registry, monitoring *MonitoringService) *PublishingService {
	return &PublishingService{
		db:         db,
		logger:     logger,
		registry:   registry,
		monitoring: monitoring,
	}
}

// Get loads an org-scoped publishing record.
func (s *PublishingService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.PublishingRecord, error) {
	var record models.PublishingRecord
	err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", id, orgID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

type CreatePublishingRequest struct {
	PostID       uuid.UUID           `json:"post_id"`
	Platform     models.PlatformKind `json:"platform"`
	SiteID       string              `json:"site_id"`
	CollectionID string              `json:"collection_id"`
	AsDraft      bool                `json:"as_draft"`
	ScheduledAt  *time.Time          `json:"scheduled_at"`
}

// Create records a new (post, platform, site) relationship and triggers the
// first publish.
func (s *PublishingService) Create(ctx context.Context, orgID uuid.UUID, req CreatePublishingRequest) (*models.PublishingRecord, error) {
	if !req.Platform.Valid() {
		return nil, fmt.Errorf("%w: unknown platform %q", ErrIllegalOperation, req.Platform)
	}

	post, err := s.loadPost(ctx, orgID, req.PostID)
	if err != nil {
		return nil, err
	}

	record := &models.PublishingRecord{
		ID:           uuid.New(),
		OrgID:        orgID,
		PostID:       post.ID,
		Platform:     req.Platform,
		SiteID:       req.SiteID,
		CollectionID: req.CollectionID,
		Status:       models.PublishingStatusPending,
		IsDraft:      req.AsDraft,
		ScheduledAt:  req.ScheduledAt,
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}

	return s.publish(ctx, record, post)
}

// Retry re-attempts a failed publish.
func (s *PublishingService) Retry(ctx context.Context, orgID, id uuid.UUID) (*models.PublishingRecord, error) {
	record, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if record.Status != models.PublishingStatusFailed && record.Status != models.PublishingStatusPending {
		return nil, fmt.Errorf("%w: retry requires pending or failed, status is %s", ErrIllegalOperation, record.Status)
	}

	post, err := s.loadPost(ctx, orgID, record.PostID)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, record, post)
}

// publish creates or updates the platform item and moves the record to
// published (or scheduled). A platform failure moves the record to failed
// with the platform error recorded; the caller retries, never this service.
func (s *PublishingService) publish(ctx context.Context, record *models.PublishingRecord, post *models.Post) (*models.PublishingRecord, error) {
	next := models.PublishingStatusPublished
	goLive := !record.IsDraft
	if record.ScheduledAt != nil && record.ScheduledAt.After(time.Now()) {
		next = models.PublishingStatusScheduled
		goLive = false
	}

	if _, err := record.Status.Transition(next); err != nil {
		return nil, err
	}

	client, err := s.registry.Get(record.Platform)
	if err != nil {
		return nil, err
	}

	target := platform.Target{SiteID: record.SiteID, CollectionID: record.CollectionID}
	content := platform.FromPost(post)

	var item *platform.Item
	if record.HasPlatformPost() {
		item, err = client.UpdateItem(ctx, target, record.PlatformPostID, content)
		if err == nil && goLive {
			item, err = client.SetLive(ctx, target, record.PlatformPostID)
		}
	} else {
		item, err = client.CreateItem(ctx, target, content, !goLive)
	}
	if err != nil {
		return s.recordFailure(ctx, record, "publish", err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":           next,
		"platform_post_id": item.ID,
		"platform_url":     item.URL,
		"is_draft":         item.IsDraft,
		"platform_error":   "",
	}
	if next == models.PublishingStatusPublished {
		updates["published_at"] = now
	}

	if err := s.casUpdate(ctx, record.ID, record.Status, updates); err != nil {
		return nil, err
	}

	s.monitoring.RecordMetric("publish_success", "counter", 1, map[string]interface{}{
		"platform":  record.Platform,
		"record_id": record.ID.String(),
	})
	s.logger.Info("Publishing completed",
		zap.String("platform", string(record.Platform)),
		zap.String("record_id", record.ID.String()),
		zap.String("platform_post_id", item.ID))

	return s.reload(ctx, record.ID)
}

// Unpublish moves the platform item to draft mode. Calling it on an already
// unpublished record is a no-op success and makes no platform call.
func (s *PublishingService) Unpublish(ctx context.Context, orgID, id uuid.UUID) (*models.PublishingRecord, error) {
	record, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if record.Status == models.PublishingStatusUnpublished {
		return record, nil
	}
	if !record.HasPlatformPost() {
		return nil, ErrMissingPlatformPost
	}
	if _, err := record.Status.Transition(models.PublishingStatusUnpublished); err != nil {
		return nil, err
	}

	client, err := s.registry.Get(record.Platform)
	if err != nil {
		return nil, err
	}

	target := platform.Target{SiteID: record.SiteID, CollectionID: record.CollectionID}
	if _, err := client.SetDraft(ctx, target, record.PlatformPostID); err != nil {
		return s.recordPlatformError(ctx, record, "unpublish", err)
	}

	if err := s.casUpdate(ctx, record.ID, record.Status, map[string]interface{}{
		"status":   models.PublishingStatusUnpublished,
		"is_draft": true,
	}); err != nil {
		return nil, err
	}

	return s.reload(ctx, record.ID)
}

// Republish sets an unpublished platform item live again.
func (s *PublishingService) Republish(ctx context.Context, orgID, id uuid.UUID) (*models.PublishingRecord, error) {
	record, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !record.HasPlatformPost() {
		return nil, ErrMissingPlatformPost
	}
	if record.Status != models.PublishingStatusUnpublished {
		return nil, &models.InvalidTransitionError{
			Current:   string(record.Status),
			Requested: string(models.PublishingStatusPublished),
		}
	}

	client, err := s.registry.Get(record.Platform)
	if err != nil {
		return nil, err
	}

	target := platform.Target{SiteID: record.SiteID, CollectionID: record.CollectionID}
	item, err := client.SetLive(ctx, target, record.PlatformPostID)
	if err != nil {
		return s.recordPlatformError(ctx, record, "republish", err)
	}

	if err := s.casUpdate(ctx, record.ID, record.Status, map[string]interface{}{
		"status":       models.PublishingStatusPublished,
		"is_draft":     false,
		"platform_url": item.URL,
		"published_at": time.Now().UTC(),
	}); err != nil {
		return nil, err
	}

	return s.reload(ctx, record.ID)
}

// Update propagates the current draft content to the existing platform item
// without changing the record status.
func (s *PublishingService) Update(ctx context.Context, orgID, id uuid.UUID) (*models.PublishingRecord, error) {
	record, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !record.HasPlatformPost() {
		return nil, ErrMissingPlatformPost
	}
	if record.Status != models.PublishingStatusPublished && record.Status != models.PublishingStatusUnpublished {
		return nil, fmt.Errorf("%w: update requires published or unpublished, status is %s", ErrIllegalOperation, record.Status)
	}

	post, err := s.loadPost(ctx, orgID, record.PostID)
	if err != nil {
		return nil, err
	}

	client, err := s.registry.Get(record.Platform)
	if err != nil {
		return nil, err
	}

	target := platform.Target{SiteID: record.SiteID, CollectionID: record.CollectionID}
	item, err := client.UpdateItem(ctx, target, record.PlatformPostID, platform.FromPost(post))
	if err != nil {
		return s.recordPlatformError(ctx, record, "update", err)
	}

	if err := s.db.WithContext(ctx).Model(&models.PublishingRecord{}).
		Where("id = ?", record.ID).
		Update("platform_url", item.URL).Error; err != nil {
		return nil, err
	}

	return s.reload(ctx, record.ID)
}

// DeleteFromPlatform removes the remote item. With keepRecord the local
// record is reset to a republishable state; platform_post_id is retained for
// audit because neither platform guarantees the id cannot be reused. Without
// keepRecord the record itself is deleted, which published records refuse
// unless force is set.
func (s *PublishingService) DeleteFromPlatform(ctx context.Context, orgID, id uuid.UUID, keepRecord, force bool) (*models.PublishingRecord, error) {
	record, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !record.HasPlatformPost() {
		return nil, ErrMissingPlatformPost
	}
	if record.Status == models.PublishingStatusPublished && !keepRecord && !force {
		return nil, ErrImmutableRecord
	}

	client, err := s.registry.Get(record.Platform)
	if err != nil {
		return nil, err
	}

	target := platform.Target{SiteID: record.SiteID, CollectionID: record.CollectionID}
	if err := client.DeleteItem(ctx, target, record.PlatformPostID); err != nil {
		return s.recordPlatformError(ctx, record, "delete", err)
	}

	if !keepRecord {
		if err := s.db.WithContext(ctx).Delete(&models.PublishingRecord{}, "id = ?", record.ID).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := s.casUpdate(ctx, record.ID, record.Status, map[string]interface{}{
		"status":   models.PublishingStatusUnpublished,
		"is_draft": true,
	}); err != nil {
		return nil, err
	}

	return s.reload(ctx, record.ID)
}

func (s *PublishingService) loadPost(ctx context.Context, orgID, postID uuid.UUID) (*models.Post, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Where("id = ? AND org_id = ?", postID, orgID).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// casUpdate writes record fields conditional on the status the caller
// loaded. Losing the race surfaces ErrConcurrentUpdate instead of
// overwriting the other writer's outcome.
func (s *PublishingService) casUpdate(ctx context.Context, id uuid.UUID, from models.PublishingStatus, updates map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.PublishingRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}

// recordFailure marks a failed publish attempt. The failed status is part of
// the machine, so a later retry is legal.
func (s *PublishingService) recordFailure(ctx context.Context, record *models.PublishingRecord, operation string, platformErr error) (*models.PublishingRecord, error) {
	if err := s.casUpdate(ctx, record.ID, record.Status, map[string]interface{}{
		"status":         models.PublishingStatusFailed,
		"platform_error": platformErr.Error(),
	}); err != nil {
		s.logger.Error("Failed to record publish failure", zap.Error(err))
	}
	s.reportPlatformError(record, operation, platformErr)
	fresh, reloadErr := s.reload(ctx, record.ID)
	if reloadErr != nil {
		return nil, platformErr
	}
	return fresh, platformErr
}

// recordPlatformError logs a non-publish platform failure. Local status is
// left in its last known good state.
func (s *PublishingService) recordPlatformError(ctx context.Context, record *models.PublishingRecord, operation string, platformErr error) (*models.PublishingRecord, error) {
	if err := s.db.WithContext(ctx).Model(&models.PublishingRecord{}).
		Where("id = ?", record.ID).
		Update("platform_error", platformErr.Error()).Error; err != nil {
		s.logger.Error("Failed to record platform error", zap.Error(err))
	}
	s.reportPlatformError(record, operation, platformErr)
	return nil, platformErr
}

func (s *PublishingService) reportPlatformError(record *models.PublishingRecord, operation string, platformErr error) {
	s.monitoring.RecordMetric("publish_failure", "counter", 1, map[string]interface{}{
		"platform":  record.Platform,
		"operation": operation,
		"record_id": record.ID.String(),
	})
	s.monitoring.RecordError("ERROR", "publisher",
		fmt.Sprintf("Platform %s %s failed", record.Platform, operation),
		platformErr.Error(),
		WithPlatform(string(record.Platform)),
		WithRecord(record.ID))
	s.logger.Error("Platform operation failed",
		zap.String("platform", string(record.Platform)),
		zap.String("operation", operation),
		zap.String("record_id", record.ID.String()),
		zap.Error(platformErr))
}

func (s *PublishingService) reload(ctx context.Context, id uuid.UUID) (*models.PublishingRecord, error) {
	var record models.PublishingRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}
