package labour

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// FromEvents folds a Labour's event log into its current State. The bool
// result is false for an empty log — callers use it to distinguish "does
// not exist yet" from a zero-value state.
func FromEvents(events []Event) (*State, bool) {
	if len(events) == 0 {
		return nil, false
	}
	state := newState()
	for _, event := range events {
		Apply(state, event)
	}
	return state, true
}

// Apply mutates state in place for a single event. It never fails: by the
// time an event reaches the log it has already been validated by
// HandleCommand, so Apply only ever replays history.
func Apply(state *State, event Event) {
	switch e := event.(type) {
	case LabourPlanned:
		state.ID = e.LabourID
		state.MotherID = e.MotherID
		state.MotherName = e.MotherName
		state.DueDate = e.DueDate
		state.FirstLabour = e.FirstLabour
		state.Phase = PhasePlanned

	case LabourBegun:
		t := e.StartTime
		state.StartedAt = &t
		state.Phase = maxPhase(state.Phase, PhaseEarly)

	case ContractionStarted:
		state.Contractions[e.ContractionID] = Contraction{
			ID:        e.ContractionID,
			StartTime: e.StartTime,
		}

	case ContractionEnded:
		c := state.Contractions[e.ContractionID]
		t := e.EndTime
		c.EndTime = &t
		c.Intensity = e.Intensity
		state.Contractions[e.ContractionID] = c
		state.Phase = derivePhase(state)

	case ContractionUpdated:
		c := state.Contractions[e.ContractionID]
		c.StartTime = e.StartTime
		c.EndTime = e.EndTime
		c.Intensity = e.Intensity
		state.Contractions[e.ContractionID] = c
		state.Phase = derivePhase(state)

	case ContractionRemoved:
		delete(state.Contractions, e.ContractionID)

	case LabourPhaseChanged:
		state.Phase = e.Phase

	case LabourCompleted:
		t := e.CompletedAt
		state.CompletedAt = &t
		state.Phase = PhaseComplete

	case SubscriberRequested:
		state.Subscriptions[e.SubscriptionID] = Subscription{
			ID:           e.SubscriptionID,
			SubscriberID: e.SubscriberID,
			Role:         e.Role,
			Status:       SubscriptionRequested,
		}

	case SubscriberApproved:
		sub := state.Subscriptions[e.SubscriptionID]
		sub.Status = SubscriptionSubscribed
		sub.AccessLevel = e.AccessLevel
		sub.ContactMethods = e.ContactMethods
		state.Subscriptions[e.SubscriptionID] = sub

	case SubscriberBlocked:
		sub := state.Subscriptions[e.SubscriptionID]
		sub.Status = SubscriptionBlocked
		state.Subscriptions[e.SubscriptionID] = sub

	case SubscriberRemoved:
		sub := state.Subscriptions[e.SubscriptionID]
		sub.Status = SubscriptionRemoved
		state.Subscriptions[e.SubscriptionID] = sub

	case SubscriberUnsubscribed:
		sub := state.Subscriptions[e.SubscriptionID]
		sub.Status = SubscriptionUnsubscribed
		state.Subscriptions[e.SubscriptionID] = sub

	case SubscriptionAccessLevelUpdated:
		sub := state.Subscriptions[e.SubscriptionID]
		sub.AccessLevel = e.AccessLevel
		state.Subscriptions[e.SubscriptionID] = sub

	case SubscriptionTokenGenerated:
		state.SubscriptionToken = e.Token

	case LabourUpdatePosted:
		state.LabourUpdates = append(state.LabourUpdates, LabourUpdate{
			ID:         e.UpdateID,
			UpdateType: e.UpdateType,
			Message:    e.Message,
			PostedBy:   e.PostedBy,
			PostedAt:   e.PostedAt,
		})
		if e.UpdateType == UpdateTypeAnnouncement {
			t := e.PostedAt
			state.LastAnnouncementAt = &t
		}
	}
}

// HandleCommand validates cmd against state and returns the events it
// produces. It never mutates state — callers fold the returned events
// through Apply (directly, or via a subsequent FromEvents reload) once
// they have been durably appended.
func HandleCommand(state *State, cmd Command, now time.Time, newID func() uuid.UUID) ([]Event, error) {
	switch c := cmd.(type) {

	case PlanLabour:
		if state != nil {
			return nil, &eventsourcing.AlreadyExistsError{Kind: "Labour", ID: state.ID.String()}
		}
		return []Event{LabourPlanned{
			LabourID:    newID(),
			MotherID:    c.MotherID,
			MotherName:  c.MotherName,
			DueDate:     c.DueDate,
			FirstLabour: c.FirstLabour,
		}}, nil

	case BeginLabour:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Phase != PhasePlanned {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Phase), To: "EARLY"}
		}
		return []Event{LabourBegun{StartTime: c.StartTime}}, nil

	case StartContraction:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Phase == PhaseComplete {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Phase), To: "ContractionStarted"}
		}
		if state.ActiveContraction() != nil {
			return nil, &eventsourcing.ValidationError{Msg: "a contraction is already active"}
		}
		var events []Event
		if state.Phase == PhasePlanned {
			events = append(events, LabourBegun{StartTime: c.StartTime})
		}
		events = append(events, ContractionStarted{
			ContractionID: newID(),
			StartTime:     c.StartTime,
		})
		return events, nil

	case EndContraction:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		existing, ok := state.Contractions[c.ContractionID]
		if !ok {
			return nil, &eventsourcing.NotFoundError{Kind: "Contraction", ID: c.ContractionID.String()}
		}
		if !existing.Active() {
			return nil, &eventsourcing.ValidationError{Msg: "contraction has already ended"}
		}
		if !c.EndTime.After(existing.StartTime) {
			return nil, &eventsourcing.ValidationError{Msg: "end time must be after start time"}
		}
		ended := ContractionEnded{
			ContractionID: c.ContractionID,
			EndTime:       c.EndTime,
			Intensity:     c.Intensity,
		}
		events := []Event{ended}
		next := cloneState(state)
		Apply(next, ended)
		if rank[next.Phase] > rank[state.Phase] {
			events = append(events, LabourPhaseChanged{Phase: next.Phase})
		}
		return events, nil

	case UpdateContraction:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Phase == PhaseComplete {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Phase), To: "ContractionUpdated"}
		}
		existing, ok := state.Contractions[c.ContractionID]
		if !ok {
			return nil, &eventsourcing.NotFoundError{Kind: "Contraction", ID: c.ContractionID.String()}
		}
		if existing.Active() {
			return nil, &eventsourcing.ValidationError{Msg: "cannot edit an active contraction"}
		}
		if c.EndTime != nil && !c.EndTime.After(c.StartTime) {
			return nil, &eventsourcing.ValidationError{Msg: "end time must be after start time"}
		}
		if overlapsOtherContraction(state, c.ContractionID, c.StartTime, c.EndTime) {
			return nil, &eventsourcing.ValidationError{Msg: "contraction window overlaps another contraction"}
		}
		updated := ContractionUpdated{
			ContractionID: c.ContractionID,
			StartTime:     c.StartTime,
			EndTime:       c.EndTime,
			Intensity:     c.Intensity,
		}
		events := []Event{updated}
		next := cloneState(state)
		Apply(next, updated)
		if rank[next.Phase] > rank[state.Phase] {
			events = append(events, LabourPhaseChanged{Phase: next.Phase})
		}
		return events, nil

	case RemoveContraction:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if _, ok := state.Contractions[c.ContractionID]; !ok {
			return nil, &eventsourcing.NotFoundError{Kind: "Contraction", ID: c.ContractionID.String()}
		}
		return []Event{ContractionRemoved{ContractionID: c.ContractionID}}, nil

	case RequestAccess:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Phase == PhaseComplete {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Phase), To: "SubscriberRequested"}
		}
		if state.SubscriptionToken == "" || c.Token != state.SubscriptionToken {
			return nil, eventsourcing.ErrAuthorisation
		}
		if c.SubscriberID == state.MotherID {
			return nil, &eventsourcing.ValidationError{Msg: "the mother cannot subscribe to her own labour"}
		}
		if existing := state.SubscriptionBySubscriber(c.SubscriberID); existing != nil {
			switch existing.Status {
			case SubscriptionRequested, SubscriptionSubscribed, SubscriptionBlocked:
				return nil, &eventsourcing.AlreadyExistsError{Kind: "Subscription", ID: existing.ID.String()}
			}
		}
		return []Event{SubscriberRequested{
			SubscriptionID: newID(),
			SubscriberID:   c.SubscriberID,
			Role:           c.Role,
		}}, nil

	case ApproveSubscriber:
		sub, err := requireSubscription(state, c.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.Status != SubscriptionRequested {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(sub.Status), To: "SUBSCRIBED"}
		}
		return []Event{SubscriberApproved{
			SubscriptionID: c.SubscriptionID,
			AccessLevel:    c.AccessLevel,
			ContactMethods: c.ContactMethods,
		}}, nil

	case BlockSubscriber:
		sub, err := requireSubscription(state, c.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.Status == SubscriptionBlocked {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(sub.Status), To: "BLOCKED"}
		}
		return []Event{SubscriberBlocked{SubscriptionID: c.SubscriptionID}}, nil

	case RemoveSubscriber:
		sub, err := requireSubscription(state, c.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.Status == SubscriptionRemoved {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(sub.Status), To: "REMOVED"}
		}
		return []Event{SubscriberRemoved{SubscriptionID: c.SubscriptionID}}, nil

	case Unsubscribe:
		sub, err := requireSubscription(state, c.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.Status != SubscriptionSubscribed {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(sub.Status), To: "UNSUBSCRIBED"}
		}
		return []Event{SubscriberUnsubscribed{SubscriptionID: c.SubscriptionID}}, nil

	case UpdateSubscriptionAccessLevel:
		sub, err := requireSubscription(state, c.SubscriptionID)
		if err != nil {
			return nil, err
		}
		if sub.Status != SubscriptionSubscribed {
			return nil, &eventsourcing.ValidationError{Msg: "subscription is not active"}
		}
		return []Event{SubscriptionAccessLevelUpdated{
			SubscriptionID: c.SubscriptionID,
			AccessLevel:    c.AccessLevel,
		}}, nil

	case PostLabourUpdate:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Phase == PhaseComplete {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Phase), To: "LabourUpdatePosted"}
		}
		if strings.TrimSpace(c.Message) == "" {
			return nil, &eventsourcing.ValidationError{Msg: "update message must not be empty"}
		}
		if c.UpdateType == UpdateTypeAnnouncement && !state.CanSendAnnouncement(now) {
			return nil, &eventsourcing.ValidationError{Msg: "announcements are limited to one per minute"}
		}
		return []Event{LabourUpdatePosted{
			UpdateID:   newID(),
			UpdateType: c.UpdateType,
			Message:    c.Message,
			PostedBy:   c.PostedBy,
			PostedAt:   c.PostedAt,
		}}, nil

	case CompleteLabour:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		if state.Phase == PhaseComplete {
			return nil, &eventsourcing.InvalidStateTransitionError{From: string(state.Phase), To: "COMPLETE"}
		}
		return []Event{LabourCompleted{
			CompletedAt: c.CompletedAt,
			Notes:       c.Notes,
		}}, nil

	case SetSubscriptionToken:
		if err := requireExists(state); err != nil {
			return nil, err
		}
		return []Event{SubscriptionTokenGenerated{Token: c.Token}}, nil

	default:
		return nil, &eventsourcing.InvalidCommandError{Msg: "unrecognised command"}
	}
}

func requireExists(state *State) error {
	if state == nil {
		return &eventsourcing.NotFoundError{Kind: "Labour", ID: ""}
	}
	return nil
}

func requireSubscription(state *State, id uuid.UUID) (Subscription, error) {
	if err := requireExists(state); err != nil {
		return Subscription{}, err
	}
	sub, ok := state.Subscriptions[id]
	if !ok {
		return Subscription{}, &eventsourcing.NotFoundError{Kind: "Subscription", ID: id.String()}
	}
	return sub, nil
}

// overlapsOtherContraction reports whether [start, end) overlaps any
// contraction other than excludeID. A nil end is treated as "open-ended",
// i.e. extending to infinity, so only a contraction starting after start
// can avoid overlapping it.
func overlapsOtherContraction(state *State, excludeID uuid.UUID, start time.Time, end *time.Time) bool {
	for id, c := range state.Contractions {
		if id == excludeID {
			continue
		}
		cEnd := c.EndTime
		if !windowsDisjoint(start, end, c.StartTime, cEnd) {
			return true
		}
	}
	return false
}

func windowsDisjoint(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	aIsBeforeB := aEnd != nil && !aEnd.After(bStart)
	bIsBeforeA := bEnd != nil && !bEnd.After(aStart)
	return aIsBeforeB || bIsBeforeA
}

// cloneState makes a shallow-plus-maps copy sufficient for speculatively
// applying one event to decide whether the phase advances, without
// mutating the caller's state.
func cloneState(state *State) *State {
	next := *state
	next.Contractions = make(map[uuid.UUID]Contraction, len(state.Contractions))
	for k, v := range state.Contractions {
		next.Contractions[k] = v
	}
	next.Subscriptions = make(map[uuid.UUID]Subscription, len(state.Subscriptions))
	for k, v := range state.Subscriptions {
		next.Subscriptions[k] = v
	}
	return &next
}
