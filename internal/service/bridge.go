package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service/generation"
)

const (
	EventConnected    = "connected"
	EventStatusUpdate = "status_update"
	EventComplete     = "complete"
	EventTimeout      = "timeout"
	EventError        = "error"
)

// StreamEvent is one normalized status event pushed to an observer.
type StreamEvent struct {
	Type               string             `json:"type"`
	Status             models.QueueStatus `json:"status,omitempty"`
	ProgressPercentage int                `json:"progress_percentage"`
	CurrentStage       string             `json:"current_stage,omitempty"`
	GenerationError    string             `json:"generation_error,omitempty"`
	PostID             *uuid.UUID         `json:"post_id,omitempty"`
	Error              string             `json:"error,omitempty"`
	Timestamp          string             `json:"timestamp"`
}

// StatusBridge runs one reconciliation loop per observer connection. Each
// tick it re-reads local state, polls the remote job if one is outstanding,
// folds the result back through the queue service's own transition
// validation, and re-emits local truth. It never invents state.
type StatusBridge struct {
	queue        *QueueService
	backend      generation.Client
	logger       *zap.Logger
	pollInterval time.Duration
	timeout      time.Duration
}

func NewStatusBridge(queue *QueueService, backend generation.Client, logger *zap.Logger, pollInterval, timeout time.Duration) *StatusBridge {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &StatusBridge{
		queue:        queue,
		backend:      backend,
		logger:       logger,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Stream starts a bridge for one queue item. The returned channel closes
// when the item reaches a terminal state, ctx is cancelled, or the wall
// clock timeout fires, whichever comes first.
func (b *StatusBridge) Stream(ctx context.Context, orgID, itemID uuid.UUID) (<-chan StreamEvent, error) {
	item, _, err := b.queue.Get(ctx, orgID, itemID)
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 16)
	go b.run(ctx, orgID, itemID, item, events)
	return events, nil
}

func (b *StatusBridge) run(ctx context.Context, orgID, itemID uuid.UUID, item *models.QueueItem, events chan<- StreamEvent) {
	defer close(events)

	b.emit(ctx, events, eventFromItem(EventConnected, item))

	if streamTerminal(item.Status) {
		b.emit(ctx, events, eventFromItem(EventComplete, item))
		return
	}

	deadline := time.NewTimer(b.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Client went away; no further reads or writes.
			return
		case <-deadline.C:
			b.emit(ctx, events, eventFromItem(EventTimeout, item))
			return
		case <-ticker.C:
			fresh, _, err := b.queue.Get(ctx, orgID, itemID)
			if err != nil {
				b.emit(ctx, events, StreamEvent{
					Type:      EventError,
					Error:     err.Error(),
					Timestamp: time.Now().UTC().Format(time.RFC3339),
				})
				return
			}
			item = fresh

			if streamTerminal(item.Status) {
				b.emit(ctx, events, eventFromItem(EventComplete, item))
				return
			}

			if item.BackendJobID != nil && remotePending(item.Status) {
				item = b.pollRemote(ctx, item)
			}

			b.emit(ctx, events, eventFromItem(EventStatusUpdate, item))

			if streamTerminal(item.Status) {
				b.emit(ctx, events, eventFromItem(EventComplete, item))
				return
			}
		}
	}
}

// pollRemote polls the outstanding backend job and folds the result into
// the local row. Backend unavailability triggers a bounded wake and is
// otherwise invisible to the observer; an implied illegal transition is
// logged and skipped.
func (b *StatusBridge) pollRemote(ctx context.Context, item *models.QueueItem) *models.QueueItem {
	job, err := b.backend.GetJob(ctx, *item.BackendJobID)
	if err != nil {
		if errors.Is(err, generation.ErrUnavailable) {
			b.logger.Debug("Generation backend cold, waking",
				zap.String("queue_item_id", item.ID.String()))
			if wakeErr := b.backend.Wake(ctx); wakeErr != nil {
				b.logger.Warn("Failed to wake generation backend", zap.Error(wakeErr))
			}
			return item
		}
		b.logger.Warn("Backend job poll failed",
			zap.String("job_id", *item.BackendJobID),
			zap.Error(err))
		return item
	}

	updated, err := b.queue.ApplyRemoteResult(ctx, item, job)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			b.logger.Warn("Remote result implies illegal transition, skipping",
				zap.String("queue_item_id", item.ID.String()),
				zap.String("local_status", string(item.Status)),
				zap.String("remote_state", string(job.State)),
				zap.Error(err))
			return item
		}
		b.logger.Error("Failed to apply remote result",
			zap.String("queue_item_id", item.ID.String()),
			zap.Error(err))
		return item
	}
	return updated
}

// emit delivers an event unless the observer is already gone.
func (b *StatusBridge) emit(ctx context.Context, events chan<- StreamEvent, event StreamEvent) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

func eventFromItem(eventType string, item *models.QueueItem) StreamEvent {
	return StreamEvent{
		Type:               eventType,
		Status:             item.Status,
		ProgressPercentage: item.ProgressPercentage,
		CurrentStage:       item.CurrentStage,
		GenerationError:    item.GenerationError,
		PostID:             item.PostID,
		Timestamp:          time.Now().UTC().Format(time.RFC3339),
	}
}

// streamTerminal reports whether the stream has nothing further to observe.
// generated counts as terminal here: the queue item's remaining lifecycle
// belongs to the publishing machine.
func streamTerminal(s models.QueueStatus) bool {
	switch s {
	case models.QueueStatusGenerated, models.QueueStatusPublished, models.QueueStatusFailed, models.QueueStatusCancelled:
		return true
	}
	return false
}

// remotePending reports whether a backend job could still be outstanding.
func remotePending(s models.QueueStatus) bool {
	return s == models.QueueStatusQueued || s == models.QueueStatusGenerating
}
