package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// eventsHandler serves GET /{aggregate}/events?aggregate_id=... — the raw
// event log for debugging. It is intended to sit behind the
// deployment's internal/admin surface.
func (s *Server) eventsHandler(log EventLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := c.Query("aggregate_id")
		aggregateID, err := uuid.Parse(rawID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid aggregate_id"})
			return
		}

		stored, err := log.Load(c.Request.Context(), aggregateID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if len(stored) == 0 {
			abortWithError(c, &eventsourcing.NotFoundError{Kind: "aggregate", ID: rawID})
			return
		}

		events := make([]StoredEventResponse, 0, len(stored))
		for _, row := range stored {
			events = append(events, StoredEventResponse{
				Sequence:       row.Sequence,
				AggregateID:    row.AggregateID,
				EventType:      row.EventType,
				EventData:      string(row.EventData),
				EventVersion:   row.EventVersion,
				Timestamp:      row.Timestamp,
				UserID:         row.UserID,
				IdempotencyKey: row.IdempotencyKey,
			})
		}
		c.JSON(http.StatusOK, gin.H{"events": events})
	}
}

// healthHandler reports backing-store health.
func (s *Server) healthHandler(c *gin.Context) {
	if err := s.health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
