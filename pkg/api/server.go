// Package api exposes the core's five external endpoints over
// gin. It owns envelope parsing and validation, the action/capability
// lookup handoff, and the domain-error → status-code mapping; everything
// behind it is the entity host's fetch and alarm paths.
package api

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/internal/cursor"
	"github.com/fern-labour/labour-core/pkg/authz"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/processmanager"
	"github.com/fern-labour/labour-core/pkg/readmodel"
)

// Fetcher is the slice of host.Host the API needs: the gated fetch path
// and direct alarm invocation (for admin reprocessing).
type Fetcher interface {
	Fetch(ctx context.Context, aggregateID uuid.UUID, fn func(ctx context.Context) error) error
	Alarm(ctx context.Context, aggregateID uuid.UUID) error
}

// LabourPort is the slice of host.LabourFetch the API needs.
type LabourPort interface {
	HandleCommand(ctx context.Context, aggregateID uuid.UUID, userID string, action authz.Action, cmd labour.Command, meta eventsourcing.CommandMetadata) (*labour.State, []eventsourcing.EventEnvelope, error)
	HandleSystemCommand(ctx context.Context, aggregateID uuid.UUID, action authz.Action, cmd labour.Command, meta eventsourcing.CommandMetadata) (*labour.State, []eventsourcing.EventEnvelope, error)
	Query(ctx context.Context, aggregateID uuid.UUID, userID string, action authz.Action) (*labour.State, error)
}

// NotificationPort is the slice of host.NotificationFetch the API needs.
type NotificationPort interface {
	HandleCommand(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error)
}

// EventLog is the read-only slice of the event store the debugging events
// route needs.
type EventLog interface {
	Load(ctx context.Context, aggregateID uuid.UUID) ([]eventsourcing.StoredEvent, error)
}

// LabourReads bundles the per-labour read-model repositories the query
// route serves from.
type LabourReads struct {
	Labour        readmodel.SingleItemRepository[readmodel.LabourReadModel]
	Contractions  readmodel.Repository[readmodel.ContractionReadModel]
	Updates       readmodel.Repository[readmodel.LabourUpdateReadModel]
	Subscriptions readmodel.Repository[readmodel.SubscriptionReadModel]
}

// GlobalReads is the slice of the cross-entity store the query and admin
// routes need.
type GlobalReads interface {
	SubscriptionsForSubscriber(ctx context.Context, subscriberID string, after string, limit int) (cursor.Page[readmodel.SubscriptionStatusReadModel], error)
	NotificationDetail(ctx context.Context, notificationID uuid.UUID) (readmodel.NotificationDetailReadModel, error)
	ActiveLabours(ctx context.Context, limit int) ([]readmodel.LabourStatusReadModel, error)
}

// CheckpointResetter deletes an aggregate's projection checkpoints for the
// admin rebuild operation. projection.PostgresCheckpointRepository
// satisfies it.
type CheckpointResetter interface {
	Reset(ctx context.Context, aggregateID uuid.UUID) error
}

// ExhaustedLister serves the quarantined-effect audit view.
// processmanager.PostgresEffectLedger satisfies it.
type ExhaustedLister interface {
	Exhausted(ctx context.Context, aggregateID uuid.UUID) ([]processmanager.EffectRecord, error)
}

// HealthCheck reports backing-store health for the health endpoint.
type HealthCheck func(ctx context.Context) error

// Server wires the endpoint handlers to the hosts and stores behind them.
type Server struct {
	labourHost         Fetcher
	labours            LabourPort
	notificationHost   Fetcher
	notifications      NotificationPort
	labourEvents       EventLog
	notificationEvents EventLog
	reads              LabourReads
	global             GlobalReads
	checkpoints        CheckpointResetter
	effects            ExhaustedLister
	health             HealthCheck
	logger             *slog.Logger
}

// NewServer constructs a Server.
func NewServer(
	labourHost Fetcher,
	labours LabourPort,
	notificationHost Fetcher,
	notifications NotificationPort,
	labourEvents, notificationEvents EventLog,
	reads LabourReads,
	global GlobalReads,
	checkpoints CheckpointResetter,
	effects ExhaustedLister,
	health HealthCheck,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		labourHost:         labourHost,
		labours:            labours,
		notificationHost:   notificationHost,
		notifications:      notifications,
		labourEvents:       labourEvents,
		notificationEvents: notificationEvents,
		reads:              reads,
		global:             global,
		checkpoints:        checkpoints,
		effects:            effects,
		health:             health,
		logger:             logger,
	}
}

// Register mounts every route on router.
func (s *Server) Register(router *gin.Engine) {
	router.GET("/health", s.healthHandler)

	router.POST("/labour/command", s.labourCommandHandler(false))
	router.POST("/labour/domain", s.labourCommandHandler(true))
	router.POST("/labour/query", s.labourQueryHandler)
	router.GET("/labour/events", s.eventsHandler(s.labourEvents))

	router.POST("/notification/command", s.notificationCommandHandler)
	router.POST("/notification/domain", s.notificationCommandHandler)
	router.POST("/notification/query", s.notificationQueryHandler)
	router.GET("/notification/events", s.eventsHandler(s.notificationEvents))

	router.POST("/admin/command", s.adminCommandHandler)
}
