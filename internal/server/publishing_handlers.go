package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scribeflow/scribeflow/internal/models"
	"github.com/scribeflow/scribeflow/internal/service"
	"github.com/scribeflow/scribeflow/internal/service/platform"
)

func (s *Server) handleCreatePublishing(c *gin.Context) {
	orgID, ok := service.OrgFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req service.CreatePublishingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	record, err := s.Publishing.Create(c.Request.Context(), orgID, req)
	if err != nil {
		s.renderPublishingError(c, record, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (s *Server) handleRetryPublishing(c *gin.Context) {
	s.publishingAction(c, s.Publishing.Retry)
}

func (s *Server) handleUnpublish(c *gin.Context) {
	s.publishingAction(c, s.Publishing.Unpublish)
}

func (s *Server) handleUpdatePublishing(c *gin.Context) {
	s.publishingAction(c, s.Publishing.Update)
}

func (s *Server) handleRepublish(c *gin.Context) {
	s.publishingAction(c, s.Publishing.Republish)
}

type deleteFromPlatformRequest struct {
	KeepRecord bool `json:"keep_record"`
	Force      bool `json:"force"`
}

func (s *Server) handleDeleteFromPlatform(c *gin.Context) {
	orgID, ok := service.OrgFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid publishing record id"})
		return
	}

	var req deleteFromPlatformRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}

	record, err := s.Publishing.DeleteFromPlatform(c.Request.Context(), orgID, id, req.KeepRecord, req.Force)
	if err != nil {
		s.renderPublishingError(c, record, err)
		return
	}

	if record == nil {
		c.JSON(http.StatusOK, gin.H{"message": "publishing record deleted"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// publishingAction runs one record-scoped operation with the shared id
// parsing and error mapping.
func (s *Server) publishingAction(c *gin.Context, action func(ctx context.Context, orgID, id uuid.UUID) (*models.PublishingRecord, error)) {
	orgID, ok := service.OrgFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid publishing record id"})
		return
	}

	record, err := action(c.Request.Context(), orgID, id)
	if err != nil {
		s.renderPublishingError(c, record, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

// renderPublishingError maps service and platform errors onto HTTP
// responses. A platform failure still returns the record when the service
// could persist the failure outcome.
func (s *Server) renderPublishingError(c *gin.Context, record *models.PublishingRecord, err error) {
	var transitionErr *models.InvalidTransitionError
	var platformErr *platform.OperationError
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "publishing record not found"})
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "invalid status transition",
			"current_status":   transitionErr.Current,
			"requested_status": transitionErr.Requested,
		})
	case errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, service.ErrIllegalOperation),
		errors.Is(err, service.ErrMissingPlatformPost),
		errors.Is(err, service.ErrImmutableRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &platformErr):
		body := gin.H{
			"error":    "platform operation failed",
			"platform": platformErr.Platform,
			"details":  platformErr.Message,
		}
		if record != nil {
			body["record"] = record
		}
		c.JSON(http.StatusBadGateway, body)
	default:
		s.Logger.Error("Publishing operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "details": err.Error()})
	}
}
