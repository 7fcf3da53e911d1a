package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service/generation"
)

func TestQueueGetScopedByOrg(t *testing.T) {
	svc, _ := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, svc.db, orgID, models.QueueStatusQueued)

	got, _, err := svc.Get(context.Background(), orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)

	_, _, err = svc.Get(context.Background(), uuid.New(), item.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueueCreateDefaultsToQueued(t *testing.T) {
	svc, _ := newTestQueueService(t)

	created, err := svc.Create(context.Background(), &models.QueueItem{
		OrgID:     uuid.New(),
		CreatedBy: uuid.New(),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, models.QueueStatusQueued, created.Status)
}

func TestQueuePatchLegalTransitionStampsStartedAt(t *testing.T) {
	svc, _ := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, svc.db, orgID, models.QueueStatusQueued)

	status := models.QueueStatusGenerating
	updated, err := svc.Patch(context.Background(), orgID, item.ID, PatchRequest{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, models.QueueStatusGenerating, updated.Status)
	assert.NotNil(t, updated.GenerationStartedAt)
	assert.Nil(t, updated.GenerationCompletedAt)
}

func TestQueuePatchIllegalTransition(t *testing.T) {
	svc, _ := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, svc.db, orgID, models.QueueStatusQueued)

	status := models.QueueStatusPublished
	_, err := svc.Patch(context.Background(), orgID, item.ID, PatchRequest{Status: &status})
	require.Error(t, err)

	var transitionErr *models.InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, "queued", transitionErr.Current)
	assert.Equal(t, "published", transitionErr.Requested)

	// The failed patch wrote nothing.
	fresh, _, err := svc.Get(context.Background(), orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusQueued, fresh.Status)
}

func TestQueuePatchRejectsFromTerminal(t *testing.T) {
	svc, _ := newTestQueueService(t)
	orgID := uuid.New()

	for _, terminal := range []models.QueueStatus{models.QueueStatusPublished, models.QueueStatusFailed, models.QueueStatusCancelled} {
		item := seedQueueItem(t, svc.db, orgID, terminal)
		status := models.QueueStatusQueued
		_, err := svc.Patch(context.Background(), orgID, item.ID, PatchRequest{Status: &status})
		assert.ErrorIs(t, err, models.ErrInvalidTransition, "from %s", terminal)
	}
}

func TestQueuePatchAppendsProgress(t *testing.T) {
	svc, _ := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, svc.db, orgID, models.QueueStatusGenerating)

	progress := 40
	stage := "writing"
	updated, err := svc.Patch(context.Background(), orgID, item.ID, PatchRequest{
		ProgressPercentage: &progress,
		CurrentStage:       &stage,
		ProgressUpdates:    []models.ProgressUpdate{{Stage: stage, Percentage: progress}},
	})
	require.NoError(t, err)
	assert.Equal(t, 40, updated.ProgressPercentage)
	assert.Equal(t, "writing", updated.CurrentStage)

	progress = 70
	stage = "editing"
	updated, err = svc.Patch(context.Background(), orgID, item.ID, PatchRequest{
		ProgressPercentage: &progress,
		CurrentStage:       &stage,
		ProgressUpdates:    []models.ProgressUpdate{{Stage: stage, Percentage: progress}},
	})
	require.NoError(t, err)

	history := updated.ProgressHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "writing", history[0].Stage)
	assert.Equal(t, "editing", history[1].Stage)
}

func TestQueuePatchToGeneratedMaterializesDraft(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusGenerating)

	status := models.QueueStatusGenerated
	title := "Observability on a Budget"
	content := "# Observability on a Budget\n\nStart with structured logs."
	updated, err := svc.Patch(context.Background(), orgID, item.ID, PatchRequest{
		Status:           &status,
		GeneratedTitle:   &title,
		GeneratedContent: &content,
	})
	require.NoError(t, err)

	assert.Equal(t, models.QueueStatusGenerated, updated.Status)
	assert.NotNil(t, updated.GenerationCompletedAt)
	require.NotNil(t, updated.PostID)
	require.NotNil(t, updated.Post)
	assert.Equal(t, "observability-on-a-budget", updated.Post.Slug)

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestQueuePatchDuplicateTransitionIsNoOp(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusGenerating)

	status := models.QueueStatusGenerated
	title := "Draft Once"
	content := "# Draft Once\n\nBody."
	req := PatchRequest{Status: &status, GeneratedTitle: &title, GeneratedContent: &content}

	first, err := svc.Patch(context.Background(), orgID, item.ID, req)
	require.NoError(t, err)

	// Simulate the loser of a concurrent race re-sending the same transition.
	second, err := svc.Patch(context.Background(), orgID, item.ID, req)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusGenerated, second.Status)
	assert.Equal(t, first.PostID, second.PostID)

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestQueuePatchConcurrentDuplicateTransition(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusGenerating)

	status := models.QueueStatusGenerated
	title := "Raced Draft"
	content := "# Raced Draft\n\nBody."
	req := PatchRequest{Status: &status, GeneratedTitle: &title, GeneratedContent: &content}

	// Two writers race the same transition; the status CAS lets one through
	// and collapses the other into a no-op, and the materializer's post_id
	// CAS keeps the draft singular.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Patch(context.Background(), orgID, item.ID, req)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	fresh, _, err := svc.Get(context.Background(), orgID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusGenerated, fresh.Status)
	require.NotNil(t, fresh.PostID)

	var count int64
	require.NoError(t, db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestQueueDeletePublishedIsImmutable(t *testing.T) {
	svc, _ := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, svc.db, orgID, models.QueueStatusPublished)

	err := svc.Delete(context.Background(), orgID, item.ID)
	assert.ErrorIs(t, err, ErrImmutableRecord)
}

func TestQueueDeleteFailedIsHardDelete(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusFailed)

	require.NoError(t, svc.Delete(context.Background(), orgID, item.ID))

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.QueueItem{}).Where("id = ?", item.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestQueueDeleteActiveCancels(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusGenerating)

	require.NoError(t, svc.Delete(context.Background(), orgID, item.ID))

	var fresh models.QueueItem
	require.NoError(t, db.First(&fresh, "id = ?", item.ID).Error)
	assert.Equal(t, models.QueueStatusCancelled, fresh.Status)
}

func TestApplyRemoteResultCompletedFromQueued(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusQueued)

	updated, err := svc.ApplyRemoteResult(context.Background(), item, &generation.JobStatus{
		JobID: "job-1",
		State: generation.JobStateCompleted,
		Result: &generation.JobResult{
			Title:   "Finished Post",
			Content: "# Finished Post\n\nDone.",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, models.QueueStatusGenerated, updated.Status)
	assert.Equal(t, 100, updated.ProgressPercentage)
	assert.Equal(t, "completed", updated.CurrentStage)
	assert.NotNil(t, updated.GenerationStartedAt)
	assert.NotNil(t, updated.GenerationCompletedAt)
	assert.NotNil(t, updated.PostID)
}

func TestApplyRemoteResultFailed(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusGenerating)

	updated, err := svc.ApplyRemoteResult(context.Background(), item, &generation.JobStatus{
		JobID: "job-1",
		State: generation.JobStateFailed,
		Error: "model refused the prompt",
	})
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusFailed, updated.Status)
	assert.Equal(t, "model refused the prompt", updated.GenerationError)
}

func TestApplyRemoteResultProcessingUpdatesProgress(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusQueued)

	updated, err := svc.ApplyRemoteResult(context.Background(), item, &generation.JobStatus{
		JobID:    "job-1",
		State:    generation.JobStateProcessing,
		Progress: 35,
		Stage:    "research",
	})
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusGenerating, updated.Status)
	assert.Equal(t, 35, updated.ProgressPercentage)
	assert.Equal(t, "research", updated.CurrentStage)

	// An identical poll result is a no-op.
	again, err := svc.ApplyRemoteResult(context.Background(), updated, &generation.JobStatus{
		JobID:    "job-1",
		State:    generation.JobStateProcessing,
		Progress: 35,
		Stage:    "research",
	})
	require.NoError(t, err)
	assert.Equal(t, updated.UpdatedAt, again.UpdatedAt)
}

func TestApplyRemoteResultCompletedOnTerminalItemRejected(t *testing.T) {
	svc, db := newTestQueueService(t)
	orgID := uuid.New()
	item := seedQueueItem(t, db, orgID, models.QueueStatusCancelled)

	_, err := svc.ApplyRemoteResult(context.Background(), item, &generation.JobStatus{
		JobID: "job-1",
		State: generation.JobStateCompleted,
		Result: &generation.JobResult{
			Title:   "Late Result",
			Content: "body",
		},
	})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}
