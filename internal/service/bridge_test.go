package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service/generation"
)

// fakeBackend serves scripted poll results and records wake calls.
type fakeBackend struct {
	results []*generation.JobStatus
	err     error
	calls   int
	wakes   int
}

func (f *fakeBackend) GetJob(ctx context.Context, jobID string) (*generation.JobStatus, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	idx := f.calls - 1
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	return f.results[idx], nil
}

func (f *fakeBackend) Wake(ctx context.Context) error {
	f.wakes++
	return nil
}

func newTestBridge(t *testing.T, backend generation.Client) (*StatusBridge, *QueueService) {
	t.Helper()
	queue, _ := newTestQueueService(t)
	bridge := NewStatusBridge(queue, backend, zap.NewNop(), 10*time.Millisecond, time.Second)
	return bridge, queue
}

func collectEvents(t *testing.T, events <-chan StreamEvent) []StreamEvent {
	t.Helper()

	var collected []StreamEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event, open := <-events:
			if !open {
				return collected
			}
			collected = append(collected, event)
		case <-deadline:
			t.Fatal("stream did not close in time")
		}
	}
}

func TestStreamTerminalItemEmitsConnectedAndComplete(t *testing.T) {
	bridge, queue := newTestBridge(t, &fakeBackend{})
	orgID := uuid.New()
	item := seedQueueItem(t, queue.db, orgID, models.QueueStatusGenerated)

	events, err := bridge.Stream(context.Background(), orgID, item.ID)
	require.NoError(t, err)

	collected := collectEvents(t, events)
	require.Len(t, collected, 2)
	assert.Equal(t, EventConnected, collected[0].Type)
	assert.Equal(t, EventComplete, collected[1].Type)
	assert.Equal(t, models.QueueStatusGenerated, collected[1].Status)
}

func TestStreamUnknownItem(t *testing.T) {
	bridge, _ := newTestBridge(t, &fakeBackend{})

	_, err := bridge.Stream(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStreamFoldsRemoteCompletionIntoLocalState(t *testing.T) {
	backend := &fakeBackend{
		results: []*generation.JobStatus{
			{JobID: "job-1", State: generation.JobStateProcessing, Progress: 50, Stage: "writing"},
			{
				JobID: "job-1",
				State: generation.JobStateCompleted,
				Result: &generation.JobResult{
					Title:   "Streamed Post",
					Content: "# Streamed Post\n\nBody.",
				},
			},
		},
	}
	bridge, queue := newTestBridge(t, backend)

	orgID := uuid.New()
	jobID := "job-1"
	item := &models.QueueItem{
		ID:           uuid.New(),
		OrgID:        orgID,
		CreatedBy:    uuid.New(),
		Status:       models.QueueStatusQueued,
		BackendJobID: &jobID,
	}
	require.NoError(t, queue.db.Create(item).Error)

	events, err := bridge.Stream(context.Background(), orgID, item.ID)
	require.NoError(t, err)
	collected := collectEvents(t, events)

	require.GreaterOrEqual(t, len(collected), 3)
	assert.Equal(t, EventConnected, collected[0].Type)

	last := collected[len(collected)-1]
	assert.Equal(t, EventComplete, last.Type)
	assert.Equal(t, models.QueueStatusGenerated, last.Status)
	assert.Equal(t, 100, last.ProgressPercentage)
	assert.NotNil(t, last.PostID)

	// The fold-through created exactly one draft.
	var count int64
	require.NoError(t, queue.db.Model(&models.Post{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestStreamWakesColdBackend(t *testing.T) {
	backend := &fakeBackend{err: generation.ErrUnavailable}
	queue, _ := newTestQueueService(t)
	bridge := NewStatusBridge(queue, backend, zap.NewNop(), 10*time.Millisecond, 100*time.Millisecond)

	orgID := uuid.New()
	jobID := "job-1"
	item := &models.QueueItem{
		ID:           uuid.New(),
		OrgID:        orgID,
		CreatedBy:    uuid.New(),
		Status:       models.QueueStatusGenerating,
		BackendJobID: &jobID,
	}
	require.NoError(t, queue.db.Create(item).Error)

	events, err := bridge.Stream(context.Background(), orgID, item.ID)
	require.NoError(t, err)
	collected := collectEvents(t, events)

	assert.Greater(t, backend.wakes, 0)
	last := collected[len(collected)-1]
	assert.Equal(t, EventTimeout, last.Type)
}

func TestStreamTimesOut(t *testing.T) {
	queue, _ := newTestQueueService(t)
	bridge := NewStatusBridge(queue, &fakeBackend{}, zap.NewNop(), 10*time.Millisecond, 50*time.Millisecond)

	orgID := uuid.New()
	item := seedQueueItem(t, queue.db, orgID, models.QueueStatusQueued)

	events, err := bridge.Stream(context.Background(), orgID, item.ID)
	require.NoError(t, err)
	collected := collectEvents(t, events)

	require.NotEmpty(t, collected)
	assert.Equal(t, EventConnected, collected[0].Type)
	last := collected[len(collected)-1]
	assert.Equal(t, EventTimeout, last.Type)
	assert.Equal(t, models.QueueStatusQueued, last.Status)
}

func TestStreamStopsOnClientDisconnect(t *testing.T) {
	queue, _ := newTestQueueService(t)
	bridge := NewStatusBridge(queue, &fakeBackend{}, zap.NewNop(), 10*time.Millisecond, time.Second)

	orgID := uuid.New()
	item := seedQueueItem(t, queue.db, orgID, models.QueueStatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	events, err := bridge.Stream(ctx, orgID, item.ID)
	require.NoError(t, err)

	// Read the connected event, then hang up.
	<-events
	cancel()

	select {
	case _, open := <-events:
		if open {
			// Drain anything emitted before the cancel was observed.
			for range events {
			}
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not close after disconnect")
	}
}
