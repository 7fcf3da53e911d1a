package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service/generation"
)

// QueueService owns queue item reads and writes. It never caches items:
// every operation re-reads the row and guards status writes with a
// compare-and-set on the status it loaded, so concurrent writers cannot
// double-apply a transition.
type QueueService struct {
	db           *gorm.DB
	logger       *zap.Logger
	materializer *Materializer
	monitoring   *MonitoringService
}

func NewQueueService(db *gorm.DB, logger *zap.Logger, materializer *Materializer, monitoring *MonitoringService) *QueueService {
	return &QueueService{
		db:           db,
		logger:       logger,
		materializer: materializer,
		monitoring:   monitoring,
	}
}

// Get loads an org-scoped queue item with its draft and publishing records.
func (s *QueueService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.QueueItem, []models.PublishingRecord, error) {
	var item models.QueueItem
	err := s.db.WithContext(ctx).
		Preload("Post").
		Where("id = ? AND org_id = ?", id, orgID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	var records []models.PublishingRecord
	if item.PostID != nil {
		if err := s.db.WithContext(ctx).
			Where("post_id = ?", *item.PostID).
			Order("created_at").
			Find(&records).Error; err != nil {
			return nil, nil, err
		}
	}

	return &item, records, nil
}

// Create enqueues a new generation request.
func (s *QueueService) Create(ctx context.Context, item *models.QueueItem) (*models.QueueItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.Status == "" {
		item.Status = models.QueueStatusQueued
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// PatchRequest is the set of updatable queue item fields. Progress updates
// are appended to the stored history, never replaced.
type PatchRequest struct {
	Status             *models.QueueStatus     `json:"status"`
	Priority           *int                    `json:"priority"`
	ProgressPercentage *int                    `json:"progress_percentage"`
	CurrentStage       *string                 `json:"current_stage"`
	ProgressUpdates    []models.ProgressUpdate `json:"progress_updates"`
	GenerationError    *string                 `json:"generation_error"`
	GeneratedTitle     *string                 `json:"generated_title"`
	GeneratedContent   *string                 `json:"generated_content"`
	GenerationMetadata map[string]interface{}  `json:"generation_metadata"`
	Metadata           map[string]interface{}  `json:"metadata"`
	BackendJobID       *string                 `json:"backend_job_id"`
}

// Patch applies field updates and at most one status transition. The write
// is conditional on the status the item was loaded with; if another writer
// moved the item first, the patch either collapses into a no-op (duplicate
// of the same transition) or is rejected against the fresh status.
func (s *QueueService) Patch(ctx context.Context, orgID, id uuid.UUID, req PatchRequest) (*models.QueueItem, error) {
	item, _, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}

	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.ProgressPercentage != nil {
		updates["progress_percentage"] = *req.ProgressPercentage
	}
	if req.CurrentStage != nil {
		updates["current_stage"] = *req.CurrentStage
	}
	if req.GenerationError != nil {
		updates["generation_error"] = *req.GenerationError
	}
	if req.GeneratedTitle != nil {
		updates["generated_title"] = *req.GeneratedTitle
	}
	if req.GeneratedContent != nil {
		updates["generated_content"] = *req.GeneratedContent
	}
	if req.GenerationMetadata != nil {
		updates["generation_metadata"] = models.MergeJSONMap(item.GenerationMetadata, req.GenerationMetadata)
	}
	if req.Metadata != nil {
		updates["metadata"] = models.MergeJSONMap(item.Metadata, req.Metadata)
	}
	if req.BackendJobID != nil {
		updates["backend_job_id"] = *req.BackendJobID
	}
	if len(req.ProgressUpdates) > 0 {
		encoded, err := item.AppendProgress(req.ProgressUpdates...)
		if err != nil {
			return nil, err
		}
		updates["progress_updates"] = encoded
	}

	if req.Status != nil && *req.Status != item.Status {
		next, err := item.Status.Transition(*req.Status)
		if err != nil {
			return nil, err
		}
		updates["status"] = next

		now := time.Now().UTC()
		if next == models.QueueStatusGenerating && item.GenerationStartedAt == nil {
			updates["generation_started_at"] = now
		}
		if next == models.QueueStatusGenerated && item.GenerationCompletedAt == nil {
			updates["generation_completed_at"] = now
		}
	}

	if len(updates) > 0 {
		res := s.db.WithContext(ctx).
			Model(&models.QueueItem{}).
			Where("id = ? AND status = ?", id, item.Status).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			fresh, _, err := s.Get(ctx, orgID, id)
			if err != nil {
				return nil, err
			}
			// A concurrent writer already applied the same transition: the
			// duplicate is a no-op, and the materializer guard below keeps
			// the draft from being created twice.
			if req.Status != nil && fresh.Status == *req.Status {
				return s.ensureMaterialized(ctx, orgID, fresh), nil
			}
			if req.Status != nil {
				return nil, &models.InvalidTransitionError{
					Current:   string(fresh.Status),
					Requested: string(*req.Status),
				}
			}
			return nil, ErrConcurrentUpdate
		}
	}

	fresh, _, err := s.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	return s.ensureMaterialized(ctx, orgID, fresh), nil
}

// Delete cancels or removes a queue item. Published items are immutable;
// failed and cancelled items are hard-deleted; anything else is
// soft-cancelled to preserve its history.
func (s *QueueService) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	item, _, err := s.Get(ctx, orgID, id)
	if err != nil {
		return err
	}

	switch item.Status {
	case models.QueueStatusPublished:
		return ErrImmutableRecord
	case models.QueueStatusFailed, models.QueueStatusCancelled:
		return s.db.WithContext(ctx).Unscoped().Delete(&models.QueueItem{}, "id = ?", id).Error
	default:
		res := s.db.WithContext(ctx).
			Model(&models.QueueItem{}).
			Where("id = ? AND status = ?", id, item.Status).
			Update("status", models.QueueStatusCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		return nil
	}
}

// ApplyRemoteResult folds one backend poll result into the local row. Writes
// are idempotent upserts keyed by the item id, so a duplicate poll result
// never double-applies; an implied illegal transition is surfaced to the
// caller instead of forced through.
func (s *QueueService) ApplyRemoteResult(ctx context.Context, item *models.QueueItem, job *generation.JobStatus) (*models.QueueItem, error) {
	switch job.State {
	case generation.JobStateCompleted:
		if job.Result == nil {
			message := "backend reported completion without a result"
			status := models.QueueStatusFailed
			return s.Patch(ctx, item.OrgID, item.ID, PatchRequest{Status: &status, GenerationError: &message})
		}

		// The machine only admits generated from generating; a completion
		// observed while still queued passes through generating first so the
		// started timestamp is stamped.
		if item.Status == models.QueueStatusQueued {
			status := models.QueueStatusGenerating
			updated, err := s.Patch(ctx, item.OrgID, item.ID, PatchRequest{Status: &status})
			if err != nil {
				return nil, err
			}
			item = updated
		}

		status := models.QueueStatusGenerated
		progress := 100
		stage := "completed"
		return s.Patch(ctx, item.OrgID, item.ID, PatchRequest{
			Status:             &status,
			GeneratedTitle:     &job.Result.Title,
			GeneratedContent:   &job.Result.Content,
			GenerationMetadata: job.Result.Metadata,
			ProgressPercentage: &progress,
			CurrentStage:       &stage,
			ProgressUpdates: []models.ProgressUpdate{
				{Stage: stage, Percentage: progress, Timestamp: time.Now().UTC()},
			},
		})

	case generation.JobStateFailed:
		status := models.QueueStatusFailed
		return s.Patch(ctx, item.OrgID, item.ID, PatchRequest{
			Status:          &status,
			GenerationError: &job.Error,
		})

	default:
		req := PatchRequest{}
		if item.Status == models.QueueStatusQueued && job.State == generation.JobStateProcessing {
			status := models.QueueStatusGenerating
			req.Status = &status
		}
		if job.Progress > item.ProgressPercentage {
			req.ProgressPercentage = &job.Progress
		}
		if job.Stage != "" && job.Stage != item.CurrentStage {
			req.CurrentStage = &job.Stage
			req.ProgressUpdates = []models.ProgressUpdate{
				{Stage: job.Stage, Percentage: job.Progress, Timestamp: time.Now().UTC()},
			}
		}
		if req.Status == nil && req.ProgressPercentage == nil && req.CurrentStage == nil {
			return item, nil
		}
		return s.Patch(ctx, item.OrgID, item.ID, req)
	}
}

// ensureMaterialized creates the draft for a generated item that does not
// have one yet. The materializer's own compare-and-set on post_id makes this
// safe to call from concurrent paths; failure is logged loudly but never
// reverts the committed status transition.
func (s *QueueService) ensureMaterialized(ctx context.Context, orgID uuid.UUID, item *models.QueueItem) *models.QueueItem {
	if item.Status != models.QueueStatusGenerated || item.PostID != nil {
		return item
	}
	if item.GeneratedTitle == "" || item.GeneratedContent == "" {
		s.logger.Warn("Skipping draft materialization, generated content missing",
			zap.String("queue_item_id", item.ID.String()))
		return item
	}

	if _, err := s.materializer.Materialize(ctx, item); err != nil {
		s.logger.Error("Draft materialization failed, item left generated without draft",
			zap.String("queue_item_id", item.ID.String()),
			zap.Error(err))
		s.monitoring.RecordError("ERROR", "materializer", "Draft materialization failed", err.Error(),
			WithQueueItem(item.ID))
		return item
	}

	fresh, _, err := s.Get(ctx, orgID, item.ID)
	if err != nil {
		return item
	}
	return fresh
}
