package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/authz"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

type getOwnSubscriptionBody struct {
	Limit  int    `json:"limit" validate:"omitempty,min=1,max=100"`
	Cursor string `json:"cursor"`
}

// labourQueryHandler serves POST /labour/query: authorise the principal
// against the aggregate's current state, then serve from the read-model
// repositories.
func (s *Server) labourQueryHandler(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed envelope: " + err.Error()})
		return
	}
	if err := validateEnvelope(req); err != nil {
		abortWithError(c, err)
		return
	}

	meta := commandMetadata(req.Metadata)
	ctx := c.Request.Context()

	action, ok := labourQueryAction(req.Query.Type)
	if !ok {
		abortWithError(c, &eventsourcing.InvalidCommandError{Msg: "unknown labour query type " + req.Query.Type})
		return
	}
	if _, err := s.labours.Query(ctx, meta.AggregateID, meta.UserID, action); err != nil {
		abortWithError(c, err)
		return
	}

	switch req.Query.Type {
	case "GetLabour":
		model, err := s.reads.Labour.Get(ctx, meta.AggregateID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"labour": model})

	case "ListContractions":
		models, err := s.reads.Contractions.Get(ctx, meta.AggregateID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"contractions": models})

	case "ListLabourUpdates":
		models, err := s.reads.Updates.Get(ctx, meta.AggregateID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"labour_updates": models})

	case "ListSubscriptions":
		models, err := s.reads.Subscriptions.Get(ctx, meta.AggregateID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"subscriptions": models})

	case "GetOwnSubscription":
		var b getOwnSubscriptionBody
		if err := decodeBody(req.Query.Data, &b); err != nil {
			abortWithError(c, err)
			return
		}
		limit := b.Limit
		if limit == 0 {
			limit = 20
		}
		page, err := s.global.SubscriptionsForSubscriber(ctx, meta.UserID, b.Cursor, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"subscriptions": page.Items,
			"has_more":      page.HasMore,
			"next_cursor":   page.Next,
		})
	}
}

// labourQueryAction maps a query type to its required-capability action.
func labourQueryAction(queryType string) (authz.Action, bool) {
	switch queryType {
	case "GetLabour":
		return authz.Action{Kind: authz.ActionGetLabour}, true
	case "ListContractions":
		return authz.Action{Kind: authz.ActionListContractions}, true
	case "ListLabourUpdates":
		return authz.Action{Kind: authz.ActionListLabourUpdates}, true
	case "ListSubscriptions":
		return authz.Action{Kind: authz.ActionListSubscriptions}, true
	case "GetOwnSubscription":
		return authz.Action{Kind: authz.ActionGetOwnSubscription}, true
	default:
		return authz.Action{}, false
	}
}

// notificationQueryHandler serves POST /notification/query from the global
// notification_detail read model.
func (s *Server) notificationQueryHandler(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed envelope: " + err.Error()})
		return
	}
	if err := validateEnvelope(req); err != nil {
		abortWithError(c, err)
		return
	}

	switch req.Query.Type {
	case "GetNotificationDetail":
		detail, err := s.global.NotificationDetail(c.Request.Context(), uuid.MustParse(req.Metadata.AggregateID))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notification": detail})
	default:
		abortWithError(c, &eventsourcing.InvalidCommandError{Msg: "unknown notification query type " + req.Query.Type})
	}
}
