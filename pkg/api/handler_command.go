package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// labourCommandHandler serves POST /labour/command and, with domain=true,
// the privileged POST /labour/domain route. The whole load → authorise →
// handle → append sequence runs inside the host's fetch gate.
func (s *Server) labourCommandHandler(domain bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CommandRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed envelope: " + err.Error()})
			return
		}
		if err := validateEnvelope(req); err != nil {
			abortWithError(c, err)
			return
		}

		meta := commandMetadata(req.Metadata)
		cmd, action, err := decodeLabourCommand(req.Command, meta, domain)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var envelopes []eventsourcing.EventEnvelope
		err = s.labourHost.Fetch(c.Request.Context(), meta.AggregateID, func(ctx context.Context) error {
			var envs []eventsourcing.EventEnvelope
			var err error
			if domain {
				_, envs, err = s.labours.HandleSystemCommand(ctx, meta.AggregateID, action, cmd, meta)
			} else {
				_, envs, err = s.labours.HandleCommand(ctx, meta.AggregateID, meta.UserID, action, cmd, meta)
			}
			envelopes = envs
			return err
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.JSON(http.StatusOK, commandResponse(meta.AggregateID, envelopes))
	}
}

// notificationCommandHandler serves POST /notification/command and
// /notification/domain. Both accept the same command set; notification
// callers are system actors (webhook adapters, operators); the
// capability model covers only the Labour aggregate.
func (s *Server) notificationCommandHandler(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed envelope: " + err.Error()})
		return
	}
	if err := validateEnvelope(req); err != nil {
		abortWithError(c, err)
		return
	}

	meta := commandMetadata(req.Metadata)
	cmd, err := decodeNotificationCommand(req.Command)
	if err != nil {
		abortWithError(c, err)
		return
	}

	var envelopes []eventsourcing.EventEnvelope
	err = s.notificationHost.Fetch(c.Request.Context(), meta.AggregateID, func(ctx context.Context) error {
		_, envs, err := s.notifications.HandleCommand(ctx, meta.AggregateID, cmd, meta)
		envelopes = envs
		return err
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, commandResponse(meta.AggregateID, envelopes))
}

// rebuildProjectionsBody and the body types below shape the admin
// envelope's variants.
type rebuildProjectionsBody struct {
	AggregateKind string `json:"aggregate_kind" validate:"required,oneof=labour notification"`
	AggregateID   string `json:"aggregate_id" validate:"required,uuid"`
}

type listExhaustedEffectsBody struct {
	AggregateID string `json:"aggregate_id" validate:"required,uuid"`
}

type listActiveLaboursBody struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=500"`
}

// adminCommandHandler serves POST /admin/command: projection rebuilds and
// the quarantined-effect audit view.
func (s *Server) adminCommandHandler(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed envelope: " + err.Error()})
		return
	}
	if err := validateEnvelope(req); err != nil {
		abortWithError(c, err)
		return
	}

	switch req.Command.Type {
	case "RebuildProjections":
		var b rebuildProjectionsBody
		if err := decodeBody(req.Command.Data, &b); err != nil {
			abortWithError(c, err)
			return
		}
		aggregateID := uuid.MustParse(b.AggregateID)
		if err := s.checkpoints.Reset(c.Request.Context(), aggregateID); err != nil {
			abortWithError(c, err)
			return
		}
		target := s.labourHost
		if b.AggregateKind == "notification" {
			target = s.notificationHost
		}
		if err := target.Alarm(c.Request.Context(), aggregateID); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "rebuilt", "aggregate_id": aggregateID})

	case "ListExhaustedEffects":
		var b listExhaustedEffectsBody
		if err := decodeBody(req.Command.Data, &b); err != nil {
			abortWithError(c, err)
			return
		}
		records, err := s.effects.Exhausted(c.Request.Context(), uuid.MustParse(b.AggregateID))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"effects": records})

	case "ListActiveLabours":
		var b listActiveLaboursBody
		if err := decodeBody(req.Command.Data, &b); err != nil {
			abortWithError(c, err)
			return
		}
		limit := b.Limit
		if limit == 0 {
			limit = 100
		}
		labours, err := s.global.ActiveLabours(c.Request.Context(), limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"labours": labours})

	default:
		abortWithError(c, &eventsourcing.InvalidCommandError{Msg: "unknown admin command type " + req.Command.Type})
	}
}
