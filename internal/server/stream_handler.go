package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/scribeflow/scribeflow/internal/service"
)

// handleQueueStatusStream streams generation progress over SSE. The bridge
// owns the polling loop; this handler just forwards its events until the
// channel closes or the client disconnects.
func (s *Server) handleQueueStatusStream(c *gin.Context) {
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

	events, err := s.Bridge.Stream(c.Request.Context(), orgID, id)
	if err != nil {
		s.renderQueueError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		event, open := <-events
		if !open {
			return false
		}
		c.SSEvent(event.Type, event)
		return true
	})
}
