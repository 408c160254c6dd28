package processmanager

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/policy"
)

type fakeStore struct {
	rows []eventsourcing.StoredEvent
}

func (f *fakeStore) Append(ctx context.Context, aggregateID uuid.UUID, eventType string, eventVersion int, data json.RawMessage, userID string, idempotencyKey uuid.UUID) (eventsourcing.AppendResult, error) {
	panic("not used by these tests")
}

func (f *fakeStore) Load(ctx context.Context, aggregateID uuid.UUID) ([]eventsourcing.StoredEvent, error) {
	return f.rows, nil
}

func (f *fakeStore) EventsSince(ctx context.Context, aggregateID uuid.UUID, sinceSequence int64, batchSize int) ([]eventsourcing.StoredEvent, error) {
	var out []eventsourcing.StoredEvent
	for _, r := range f.rows {
		if r.Sequence > sinceSequence {
			out = append(out, r)
			if len(out) >= batchSize {
				break
			}
		}
	}
	return out, nil
}

func encodeLabourEvent(t *testing.T, event labour.Event) json.RawMessage {
	t.Helper()
	data, err := labour.NewCodec().Encode(event)
	require.NoError(t, err)
	return data
}

type fakePolicyApp struct {
	lastProcessed  map[uuid.UUID]int64
	processingCall []int64
	processedCall  []int64
	failedCall     []int64
}

func newFakePolicyApp() *fakePolicyApp {
	return &fakePolicyApp{lastProcessed: make(map[uuid.UUID]int64)}
}

func (f *fakePolicyApp) LastProcessedSequence(ctx context.Context, aggregateID uuid.UUID) (int64, error) {
	return f.lastProcessed[aggregateID], nil
}

func (f *fakePolicyApp) MarkProcessing(ctx context.Context, aggregateID uuid.UUID, sequence int64) error {
	f.processingCall = append(f.processingCall, sequence)
	return nil
}

func (f *fakePolicyApp) MarkProcessed(ctx context.Context, aggregateID uuid.UUID, sequence int64) error {
	f.processedCall = append(f.processedCall, sequence)
	f.lastProcessed[aggregateID] = sequence
	return nil
}

func (f *fakePolicyApp) MarkFailed(ctx context.Context, aggregateID uuid.UUID, sequence int64, policyErr error) error {
	f.failedCall = append(f.failedCall, sequence)
	return nil
}

type fakeLedger struct {
	inserted []EffectRecord
}

func (f *fakeLedger) Insert(ctx context.Context, aggregateID uuid.UUID, effectID uuid.UUID, effectType string, payload json.RawMessage, sourceSequence int64) error {
	f.inserted = append(f.inserted, EffectRecord{EffectID: effectID, AggregateID: aggregateID, EffectType: effectType, EffectPayload: payload, SourceSequence: sourceSequence, Status: EffectPending})
	return nil
}

func (f *fakeLedger) DispatchCandidates(ctx context.Context, aggregateID uuid.UUID) ([]EffectRecord, error) {
	var out []EffectRecord
	for _, r := range f.inserted {
		if r.Status == EffectPending || r.Status == EffectFailed {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeLedger) MarkDispatched(ctx context.Context, effectID uuid.UUID) error {
	for i := range f.inserted {
		if f.inserted[i].EffectID == effectID {
			f.inserted[i].Status = EffectDispatched
			f.inserted[i].Attempts++
		}
	}
	return nil
}

func (f *fakeLedger) MarkCompleted(ctx context.Context, effectID uuid.UUID) error {
	for i := range f.inserted {
		if f.inserted[i].EffectID == effectID {
			f.inserted[i].Status = EffectCompleted
		}
	}
	return nil
}

func (f *fakeLedger) MarkFailed(ctx context.Context, effectID uuid.UUID, execErr error) error {
	for i := range f.inserted {
		if f.inserted[i].EffectID == effectID {
			f.inserted[i].Status = EffectFailed
			f.inserted[i].LastError = execErr.Error()
		}
	}
	return nil
}

type recordingExecutor struct {
	name    string
	calls   []policy.Effect
	failErr error
}

func (e *recordingExecutor) Name() string { return e.name }

func (e *recordingExecutor) Execute(ctx context.Context, effect policy.Effect) error {
	e.calls = append(e.calls, effect)
	return e.failErr
}

func TestManager_ProcessNewEvents_GeneratesTokenEffectForLabourPlanned(t *testing.T) {
	labourID := uuid.New()
	store := &fakeStore{rows: []eventsourcing.StoredEvent{
		{Sequence: 1, AggregateID: labourID, EventType: "LabourPlanned", EventVersion: 1, Timestamp: time.Now(), EventData: encodeLabourEvent(t, labour.LabourPlanned{LabourID: labourID, MotherID: "mother-1"})},
	}}
	policyApp := newFakePolicyApp()
	ledger := &fakeLedger{}
	registry := policy.NewRegistry()

	m := NewManager(store, labour.NewCodec(), policyApp, registry, ledger, nil, nil)

	err := m.ProcessNewEvents(context.Background(), labourID)
	require.NoError(t, err)

	require.Len(t, ledger.inserted, 1)
	assert.Equal(t, "GenerateSubscriptionToken", ledger.inserted[0].EffectType)
	assert.Equal(t, []int64{1}, policyApp.processedCall)
}

func TestManager_ProcessNewEvents_SkipsAlreadyProcessedEvents(t *testing.T) {
	labourID := uuid.New()
	store := &fakeStore{rows: []eventsourcing.StoredEvent{
		{Sequence: 1, AggregateID: labourID, EventType: "LabourPlanned", EventVersion: 1, Timestamp: time.Now(), EventData: encodeLabourEvent(t, labour.LabourPlanned{LabourID: labourID, MotherID: "mother-1"})},
	}}
	policyApp := newFakePolicyApp()
	policyApp.lastProcessed[labourID] = 1
	ledger := &fakeLedger{}
	registry := policy.NewRegistry()

	m := NewManager(store, labour.NewCodec(), policyApp, registry, ledger, nil, nil)

	err := m.ProcessNewEvents(context.Background(), labourID)
	require.NoError(t, err)
	assert.Empty(t, ledger.inserted)
	assert.Empty(t, policyApp.processedCall)
}

func TestManager_DispatchPendingEffects_MarksCompletedOnSuccess(t *testing.T) {
	labourID := uuid.New()
	effectID := uuid.New()
	payload, err := json.Marshal(policy.GenerateSubscriptionToken{LabourID: labourID, IdempotencyKey: effectID})
	require.NoError(t, err)

	ledger := &fakeLedger{inserted: []EffectRecord{{EffectID: effectID, AggregateID: labourID, EffectType: "GenerateSubscriptionToken", EffectPayload: payload, Status: EffectPending}}}
	tokenExec := &recordingExecutor{name: "token-generator"}
	dispatcher := NewDispatcher(map[string]Executor{"token-generator": tokenExec}, DefaultSelector, nil)

	m := NewManager(nil, labour.Codec{}, nil, nil, ledger, dispatcher, nil)

	err = m.DispatchPendingEffects(context.Background(), labourID)
	require.NoError(t, err)
	require.Len(t, tokenExec.calls, 1)
	assert.Equal(t, EffectCompleted, ledger.inserted[0].Status)
}

func TestManager_DispatchPendingEffects_MarksFailedOnExecutorError(t *testing.T) {
	labourID := uuid.New()
	effectID := uuid.New()
	payload, err := json.Marshal(policy.GenerateSubscriptionToken{LabourID: labourID, IdempotencyKey: effectID})
	require.NoError(t, err)

	ledger := &fakeLedger{inserted: []EffectRecord{{EffectID: effectID, AggregateID: labourID, EffectType: "GenerateSubscriptionToken", EffectPayload: payload, Status: EffectPending}}}
	tokenExec := &recordingExecutor{name: "token-generator", failErr: assertErr}
	dispatcher := NewDispatcher(map[string]Executor{"token-generator": tokenExec}, DefaultSelector, nil)

	m := NewManager(nil, labour.Codec{}, nil, nil, ledger, dispatcher, nil)

	err = m.DispatchPendingEffects(context.Background(), labourID)
	require.Error(t, err)
	assert.Equal(t, EffectFailed, ledger.inserted[0].Status)
}

var assertErr = &fakeExecutorError{}

type fakeExecutorError struct{}

func (e *fakeExecutorError) Error() string { return "boom" }
