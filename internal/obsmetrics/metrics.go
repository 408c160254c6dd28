// Package obsmetrics provides the Prometheus collectors the core exposes
// for append latency, projector lag, effect dispatch outcome, and alarm
// duration. Observability is the one process-wide concern here, so
// unlike the rest of the core these collectors are package-level
// singletons rather than values threaded through the host.
package obsmetrics

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

var (
	// AppendDuration measures EventStore.Append latency by aggregate kind.
	AppendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labourcore_event_append_duration_seconds",
			Help:    "Event store append latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"aggregate_kind"},
	)

	// ProjectorLag is the gap, in sequence numbers, between a projector's
	// checkpoint and the log's latest sequence immediately after a batch.
	ProjectorLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "labourcore_projector_lag_sequences",
			Help: "Sequences between a projector's checkpoint and the log head",
		},
		[]string{"projector"},
	)

	// EffectDispatchTotal counts effect dispatch outcomes by executor and
	// result (completed, failed, exhausted).
	EffectDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "labourcore_effect_dispatch_total",
			Help: "Effect dispatch outcomes by executor and result",
		},
		[]string{"executor", "result"},
	)

	// AlarmDuration measures one full alarm tick (process manager +
	// projection passes) per aggregate kind.
	AlarmDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "labourcore_alarm_duration_seconds",
			Help:    "Alarm tick duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"aggregate_kind"},
	)
)

func init() {
	prometheus.MustRegister(AppendDuration, ProjectorLag, EffectDispatchTotal, AlarmDuration)
}

// InstrumentedEventStore wraps an eventsourcing.EventStore to record
// AppendDuration per aggregate kind, without the store itself needing to
// know metrics exist.
type InstrumentedEventStore struct {
	eventsourcing.EventStore
	AggregateKind string
}

func (s InstrumentedEventStore) Append(ctx context.Context, aggregateID uuid.UUID, eventType string, eventVersion int, eventData json.RawMessage, userID string, idempotencyKey uuid.UUID) (eventsourcing.AppendResult, error) {
	start := time.Now()
	defer func() {
		AppendDuration.WithLabelValues(s.AggregateKind).Observe(time.Since(start).Seconds())
	}()
	return s.EventStore.Append(ctx, aggregateID, eventType, eventVersion, eventData, userID, idempotencyKey)
}
