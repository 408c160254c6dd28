package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/internal/cursor"
	"github.com/fern-labour/labour-core/pkg/authz"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/processmanager"
	"github.com/fern-labour/labour-core/pkg/readmodel"
)

// directFetcher runs the fetch closure inline and records alarm calls,
// standing in for host.Host.
type directFetcher struct {
	alarms []uuid.UUID
}

func (f *directFetcher) Fetch(ctx context.Context, aggregateID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *directFetcher) Alarm(ctx context.Context, aggregateID uuid.UUID) error {
	f.alarms = append(f.alarms, aggregateID)
	return nil
}

type stubLabourPort struct {
	lastCmd    labour.Command
	lastAction authz.Action
	lastUser   string
	err        error
	envelopes  []eventsourcing.EventEnvelope
}

func (p *stubLabourPort) HandleCommand(ctx context.Context, aggregateID uuid.UUID, userID string, action authz.Action, cmd labour.Command, meta eventsourcing.CommandMetadata) (*labour.State, []eventsourcing.EventEnvelope, error) {
	p.lastCmd = cmd
	p.lastAction = action
	p.lastUser = userID
	if p.err != nil {
		return nil, nil, p.err
	}
	return &labour.State{ID: aggregateID}, p.envelopes, nil
}

func (p *stubLabourPort) HandleSystemCommand(ctx context.Context, aggregateID uuid.UUID, action authz.Action, cmd labour.Command, meta eventsourcing.CommandMetadata) (*labour.State, []eventsourcing.EventEnvelope, error) {
	p.lastCmd = cmd
	p.lastAction = action
	if p.err != nil {
		return nil, nil, p.err
	}
	return &labour.State{ID: aggregateID}, p.envelopes, nil
}

func (p *stubLabourPort) Query(ctx context.Context, aggregateID uuid.UUID, userID string, action authz.Action) (*labour.State, error) {
	p.lastAction = action
	p.lastUser = userID
	if p.err != nil {
		return nil, p.err
	}
	return &labour.State{ID: aggregateID}, nil
}

type stubNotificationPort struct {
	lastCmd notification.Command
	err     error
}

func (p *stubNotificationPort) HandleCommand(ctx context.Context, aggregateID uuid.UUID, cmd notification.Command, meta eventsourcing.CommandMetadata) (*notification.State, []eventsourcing.EventEnvelope, error) {
	p.lastCmd = cmd
	if p.err != nil {
		return nil, nil, p.err
	}
	return &notification.State{ID: aggregateID}, nil, nil
}

type stubEventLog struct {
	events []eventsourcing.StoredEvent
	err    error
}

func (l *stubEventLog) Load(ctx context.Context, aggregateID uuid.UUID) ([]eventsourcing.StoredEvent, error) {
	return l.events, l.err
}

type stubSingleItemRepo struct{ model readmodel.LabourReadModel }

func (r *stubSingleItemRepo) Get(ctx context.Context, aggregateID uuid.UUID) (readmodel.LabourReadModel, error) {
	return r.model, nil
}
func (r *stubSingleItemRepo) Overwrite(ctx context.Context, aggregateID uuid.UUID, model readmodel.LabourReadModel) error {
	return nil
}
func (r *stubSingleItemRepo) Delete(ctx context.Context, aggregateID uuid.UUID) error { return nil }

type stubListRepo[M any] struct{ models []M }

func (r *stubListRepo[M]) GetByID(ctx context.Context, scope, id uuid.UUID) (M, error) {
	var zero M
	return zero, &eventsourcing.NotFoundError{Kind: "row", ID: id.String()}
}
func (r *stubListRepo[M]) Get(ctx context.Context, scope uuid.UUID) ([]M, error) {
	return r.models, nil
}
func (r *stubListRepo[M]) Upsert(ctx context.Context, scope uuid.UUID, model M) error { return nil }
func (r *stubListRepo[M]) Delete(ctx context.Context, scope, id uuid.UUID) error      { return nil }

type stubGlobal struct {
	page   cursor.Page[readmodel.SubscriptionStatusReadModel]
	detail readmodel.NotificationDetailReadModel
}

func (g *stubGlobal) SubscriptionsForSubscriber(ctx context.Context, subscriberID string, after string, limit int) (cursor.Page[readmodel.SubscriptionStatusReadModel], error) {
	return g.page, nil
}
func (g *stubGlobal) NotificationDetail(ctx context.Context, notificationID uuid.UUID) (readmodel.NotificationDetailReadModel, error) {
	return g.detail, nil
}
func (g *stubGlobal) ActiveLabours(ctx context.Context, limit int) ([]readmodel.LabourStatusReadModel, error) {
	return nil, nil
}

type stubAdmin struct {
	resets []uuid.UUID
}

func (a *stubAdmin) Reset(ctx context.Context, aggregateID uuid.UUID) error {
	a.resets = append(a.resets, aggregateID)
	return nil
}

type stubExhausted struct {
	records []processmanager.EffectRecord
}

func (e *stubExhausted) Exhausted(ctx context.Context, aggregateID uuid.UUID) ([]processmanager.EffectRecord, error) {
	return e.records, nil
}

type testServer struct {
	router       *gin.Engine
	labourHost   *directFetcher
	labours      *stubLabourPort
	notifyHost   *directFetcher
	notifies     *stubNotificationPort
	labourEvents *stubEventLog
	admin        *stubAdmin
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		labourHost:   &directFetcher{},
		labours:      &stubLabourPort{},
		notifyHost:   &directFetcher{},
		notifies:     &stubNotificationPort{},
		labourEvents: &stubEventLog{},
		admin:        &stubAdmin{},
	}
	server := NewServer(
		ts.labourHost,
		ts.labours,
		ts.notifyHost,
		ts.notifies,
		ts.labourEvents,
		&stubEventLog{},
		LabourReads{
			Labour:        &stubSingleItemRepo{},
			Contractions:  &stubListRepo[readmodel.ContractionReadModel]{},
			Updates:       &stubListRepo[readmodel.LabourUpdateReadModel]{},
			Subscriptions: &stubListRepo[readmodel.SubscriptionReadModel]{},
		},
		&stubGlobal{},
		ts.admin,
		&stubExhausted{},
		func(ctx context.Context) error { return nil },
		nil,
	)
	ts.router = gin.New()
	server.Register(ts.router)
	return ts
}

func envelope(t *testing.T, commandType string, data any, userID string) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	body, err := json.Marshal(map[string]any{
		"command": map[string]any{"type": commandType, "data": json.RawMessage(raw)},
		"metadata": map[string]any{
			"aggregate_id":    uuid.New().String(),
			"command_id":      uuid.New().String(),
			"correlation_id":  uuid.New().String(),
			"user_id":         userID,
			"idempotency_key": uuid.New().String(),
			"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	require.NoError(t, err)
	return body
}

func (ts *testServer) post(t *testing.T, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestLabourCommandRouteDecodesAndExecutes(t *testing.T) {
	ts := newTestServer(t)

	body := envelope(t, "PlanLabour", map[string]any{
		"mother_name":  "Alice",
		"due_date":     "2025-06-01T00:00:00Z",
		"first_labour": true,
	}, "mother-1")

	rec := ts.post(t, "/labour/command", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cmd, ok := ts.labours.lastCmd.(labour.PlanLabour)
	require.True(t, ok)
	assert.Equal(t, "mother-1", cmd.MotherID)
	assert.Equal(t, "Alice", cmd.MotherName)
	assert.True(t, cmd.FirstLabour)
	assert.Equal(t, authz.Action{Kind: authz.ActionPlanLabour}, ts.labours.lastAction)
}

func TestLabourCommandRouteRejectsMalformedEnvelope(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.post(t, "/labour/command", []byte(`{"command": {`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLabourCommandRouteRejectsMissingMetadata(t *testing.T) {
	ts := newTestServer(t)
	body, _ := json.Marshal(map[string]any{
		"command":  map[string]any{"type": "BeginLabour"},
		"metadata": map[string]any{"user_id": "u"},
	})
	rec := ts.post(t, "/labour/command", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLabourCommandRouteMapsAuthorisationFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.labours.err = fmt.Errorf("denied: %w", eventsourcing.ErrAuthorisation)

	body := envelope(t, "BeginLabour", map[string]any{}, "intruder")
	rec := ts.post(t, "/labour/command", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetSubscriptionTokenOnlyOnDomainRoute(t *testing.T) {
	ts := newTestServer(t)

	body := envelope(t, "SetSubscriptionToken", map[string]any{"token": "T"}, "system")
	rec := ts.post(t, "/labour/command", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.post(t, "/labour/domain", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, authz.Action{Kind: authz.ActionSetSubscriptionToken, Domain: true}, ts.labours.lastAction)
}

func TestDomainRouteChangesPostLabourUpdateAction(t *testing.T) {
	ts := newTestServer(t)

	body := envelope(t, "PostLabourUpdate", map[string]any{
		"update_type": "STATUS_UPDATE",
		"message":     "heading to hospital",
	}, "app")
	rec := ts.post(t, "/labour/domain", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, authz.Action{Kind: authz.ActionPostLabourUpdate, Domain: true}, ts.labours.lastAction)
}

func TestNotificationCommandRoute(t *testing.T) {
	ts := newTestServer(t)

	body := envelope(t, "RequestNotification", map[string]any{
		"channel":     "EMAIL",
		"destination": "user@example.com",
		"priority":    "High",
	}, "system")
	rec := ts.post(t, "/notification/command", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cmd, ok := ts.notifies.lastCmd.(notification.RequestNotification)
	require.True(t, ok)
	assert.Equal(t, notification.ChannelEmail, cmd.Channel)
	assert.Equal(t, notification.PriorityHigh, cmd.Priority)
}

func TestAdminRebuildProjectionsResetsAndReprocesses(t *testing.T) {
	ts := newTestServer(t)

	aggregateID := uuid.New()
	body := envelope(t, "RebuildProjections", map[string]any{
		"aggregate_kind": "labour",
		"aggregate_id":   aggregateID.String(),
	}, "admin")
	rec := ts.post(t, "/admin/command", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, ts.admin.resets, 1)
	assert.Equal(t, aggregateID, ts.admin.resets[0])
	require.Len(t, ts.labourHost.alarms, 1)
	assert.Equal(t, aggregateID, ts.labourHost.alarms[0])
}

func TestEventsRoute(t *testing.T) {
	ts := newTestServer(t)
	aggregateID := uuid.New()
	ts.labourEvents.events = []eventsourcing.StoredEvent{
		{Sequence: 1, AggregateID: aggregateID, EventType: "LabourPlanned", EventData: json.RawMessage(`{}`), EventVersion: 1},
	}

	req := httptest.NewRequest(http.MethodGet, "/labour/events?aggregate_id="+aggregateID.String(), nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []StoredEventResponse `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	assert.Equal(t, "LabourPlanned", resp.Events[0].EventType)
}

func TestEventsRouteUnknownAggregate(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/labour/events?aggregate_id="+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLabourQueryRouteAuthorisesBeforeReading(t *testing.T) {
	ts := newTestServer(t)
	ts.labours.err = fmt.Errorf("denied: %w", eventsourcing.ErrAuthorisation)

	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{"type": "GetLabour"},
		"metadata": map[string]any{
			"aggregate_id":    uuid.New().String(),
			"command_id":      uuid.New().String(),
			"correlation_id":  uuid.New().String(),
			"user_id":         "stranger",
			"idempotency_key": uuid.New().String(),
			"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	rec := ts.post(t, "/labour/query", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLabourQueryRouteServesReadModel(t *testing.T) {
	ts := newTestServer(t)

	body, _ := json.Marshal(map[string]any{
		"query": map[string]any{"type": "ListContractions"},
		"metadata": map[string]any{
			"aggregate_id":    uuid.New().String(),
			"command_id":      uuid.New().String(),
			"correlation_id":  uuid.New().String(),
			"user_id":         "mother-1",
			"idempotency_key": uuid.New().String(),
			"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
		},
	})
	rec := ts.post(t, "/labour/query", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, authz.Action{Kind: authz.ActionListContractions}, ts.labours.lastAction)
}
