package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service"
)

type createQueueItemRequest struct {
	Priority int                    `json:"priority"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) handleCreateQueueItem(c *gin.Context) {
	orgID, ok := service.OrgFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req createQueueItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	createdBy, _ := uuid.Parse(c.GetString("user_id"))
	item := &models.QueueItem{
		OrgID:     orgID,
		CreatedBy: createdBy,
		Priority:  req.Priority,
		Metadata:  datatypes.JSONMap(req.Metadata),
	}

	created, err := s.Queue.Create(c.Request.Context(), item)
	if err != nil {
		s.Logger.Error("Failed to create queue item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create queue item", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (s *Server) handleGetQueueItem(c *gin.Context) {
	orgID, ok := service.OrgFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue item id"})
		return
	}

	item, records, err := s.Queue.Get(c.Request.Context(), orgID, id)
	if err != nil {
		s.renderQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"queue_item":         item,
		"publishing_records": records,
	})
}

func (s *Server) handlePatchQueueItem(c *gin.Context) {
	orgID, ok := service.OrgFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue item id"})
		return
	}

	var req service.PatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	item, err := s.Queue.Patch(c.Request.Context(), orgID, id, req)
	if err != nil {
		s.renderQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (s *Server) handleDeleteQueueItem(c *gin.Context) {
	orgID, ok := service.OrgFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid queue item id"})
		return
	}

	if err := s.Queue.Delete(c.Request.Context(), orgID, id); err != nil {
		s.renderQueueError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "queue item deleted"})
}

// renderQueueError maps service errors onto HTTP responses. Transition
// rejections carry both statuses so clients can resynchronize.
func (s *Server) renderQueueError(c *gin.Context, err error) {
	var transitionErr *models.InvalidTransitionError
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "queue item not found"})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "invalid status transition",
			"current_status":   transitionErr.Current,
			"requested_status": transitionErr.Requested,
		})
	case errors.Is(err, models.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrImmutableRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.Logger.Error("Queue operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "details": err.Error()})
	}
}
