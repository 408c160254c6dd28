package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fern-labour/labour-core/pkg/authz"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/labour"
)

// Wire DTOs for each Labour command variant. Ids and actor attribution
// come from the envelope metadata, never from the body, so a caller
// cannot plan a labour for someone else or backdate authorship.

type planLabourBody struct {
	MotherName  string    `json:"mother_name" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	FirstLabour bool      `json:"first_labour"`
}

type beginLabourBody struct {
	StartTime time.Time `json:"start_time"`
}

type startContractionBody struct {
	StartTime time.Time `json:"start_time"`
}

type endContractionBody struct {
	ContractionID string    `json:"contraction_id" validate:"required,uuid"`
	EndTime       time.Time `json:"end_time"`
	Intensity     *int      `json:"intensity" validate:"omitempty,min=1,max=10"`
}

type updateContractionBody struct {
	ContractionID string     `json:"contraction_id" validate:"required,uuid"`
	StartTime     time.Time  `json:"start_time" validate:"required"`
	EndTime       *time.Time `json:"end_time"`
	Intensity     *int       `json:"intensity" validate:"omitempty,min=1,max=10"`
}

type removeContractionBody struct {
	ContractionID string `json:"contraction_id" validate:"required,uuid"`
}

type requestAccessBody struct {
	Role  string `json:"role" validate:"required,oneof=PARTNER FRIENDS_AND_FAMILY HEALTHCARE_PROVIDER"`
	Token string `json:"token" validate:"required"`
}

type approveSubscriberBody struct {
	SubscriptionID string   `json:"subscription_id" validate:"required,uuid"`
	AccessLevel    string   `json:"access_level" validate:"required,oneof=BASIC FULL"`
	ContactMethods []string `json:"contact_methods" validate:"required,min=1,dive,oneof=EMAIL SMS WHATSAPP"`
}

type subscriptionBody struct {
	SubscriptionID string `json:"subscription_id" validate:"required,uuid"`
}

type updateAccessLevelBody struct {
	SubscriptionID string `json:"subscription_id" validate:"required,uuid"`
	AccessLevel    string `json:"access_level" validate:"required,oneof=BASIC FULL"`
}

type postLabourUpdateBody struct {
	UpdateType string `json:"update_type" validate:"required,oneof=STATUS_UPDATE ANNOUNCEMENT"`
	Message    string `json:"message" validate:"required"`
}

type completeLabourBody struct {
	CompletedAt time.Time `json:"completed_at"`
	Notes       string    `json:"notes"`
}

type setSubscriptionTokenBody struct {
	Token string `json:"token" validate:"required"`
}

// decodeLabourCommand turns a command body into the domain command it
// names plus the authz action gating it. domain marks the privileged
// /labour/domain route, which both widens the accepted command set
// (SetSubscriptionToken) and changes which capability PostLabourUpdate is
// authorised against.
func decodeLabourCommand(body CommandBody, meta eventsourcing.CommandMetadata, domain bool) (labour.Command, authz.Action, error) {
	timestampOr := func(t time.Time) time.Time {
		if t.IsZero() {
			return meta.Timestamp
		}
		return t.UTC()
	}

	switch body.Type {
	case "PlanLabour":
		var b planLabourBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.PlanLabour{
			MotherID:    meta.UserID,
			MotherName:  b.MotherName,
			DueDate:     b.DueDate.UTC(),
			FirstLabour: b.FirstLabour,
		}, authz.Action{Kind: authz.ActionPlanLabour, Domain: domain}, nil

	case "BeginLabour":
		var b beginLabourBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.BeginLabour{StartTime: timestampOr(b.StartTime)},
			authz.Action{Kind: authz.ActionBeginLabour, Domain: domain}, nil

	case "StartContraction":
		var b startContractionBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.StartContraction{StartTime: timestampOr(b.StartTime)},
			authz.Action{Kind: authz.ActionStartContraction, Domain: domain}, nil

	case "EndContraction":
		var b endContractionBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.EndContraction{
			ContractionID: uuid.MustParse(b.ContractionID),
			EndTime:       timestampOr(b.EndTime),
			Intensity:     b.Intensity,
		}, authz.Action{Kind: authz.ActionEndContraction, Domain: domain}, nil

	case "UpdateContraction":
		var b updateContractionBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.UpdateContraction{
			ContractionID: uuid.MustParse(b.ContractionID),
			StartTime:     b.StartTime.UTC(),
			EndTime:       b.EndTime,
			Intensity:     b.Intensity,
		}, authz.Action{Kind: authz.ActionUpdateContraction, Domain: domain}, nil

	case "RemoveContraction":
		var b removeContractionBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.RemoveContraction{ContractionID: uuid.MustParse(b.ContractionID)},
			authz.Action{Kind: authz.ActionRemoveContraction, Domain: domain}, nil

	case "RequestAccess":
		var b requestAccessBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.RequestAccess{
			SubscriberID: meta.UserID,
			Role:         labour.SubscriberRole(b.Role),
			Token:        b.Token,
		}, authz.Action{Kind: authz.ActionRequestAccess, Domain: domain}, nil

	case "ApproveSubscriber":
		var b approveSubscriberBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		methods := make([]labour.ContactMethod, 0, len(b.ContactMethods))
		for _, m := range b.ContactMethods {
			methods = append(methods, labour.ContactMethod(m))
		}
		return labour.ApproveSubscriber{
			SubscriptionID: uuid.MustParse(b.SubscriptionID),
			AccessLevel:    labour.AccessLevel(b.AccessLevel),
			ContactMethods: methods,
		}, authz.Action{Kind: authz.ActionApproveSubscriber, Domain: domain}, nil

	case "BlockSubscriber":
		var b subscriptionBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.BlockSubscriber{SubscriptionID: uuid.MustParse(b.SubscriptionID)},
			authz.Action{Kind: authz.ActionBlockSubscriber, Domain: domain}, nil

	case "RemoveSubscriber":
		var b subscriptionBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.RemoveSubscriber{SubscriptionID: uuid.MustParse(b.SubscriptionID)},
			authz.Action{Kind: authz.ActionRemoveSubscriber, Domain: domain}, nil

	case "Unsubscribe":
		var b subscriptionBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.Unsubscribe{SubscriptionID: uuid.MustParse(b.SubscriptionID)},
			authz.Action{Kind: authz.ActionUnsubscribe, Domain: domain}, nil

	case "UpdateSubscriptionAccessLevel":
		var b updateAccessLevelBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.UpdateSubscriptionAccessLevel{
			SubscriptionID: uuid.MustParse(b.SubscriptionID),
			AccessLevel:    labour.AccessLevel(b.AccessLevel),
		}, authz.Action{Kind: authz.ActionUpdateSubscriptionAccessLevel, Domain: domain}, nil

	case "PostLabourUpdate":
		var b postLabourUpdateBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.PostLabourUpdate{
			UpdateType: labour.UpdateType(b.UpdateType),
			Message:    b.Message,
			PostedBy:   meta.UserID,
			PostedAt:   meta.Timestamp,
		}, authz.Action{Kind: authz.ActionPostLabourUpdate, Domain: domain}, nil

	case "CompleteLabour":
		var b completeLabourBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.CompleteLabour{
			CompletedAt: timestampOr(b.CompletedAt),
			Notes:       b.Notes,
		}, authz.Action{Kind: authz.ActionCompleteLabour, Domain: domain}, nil

	case "SetSubscriptionToken":
		if !domain {
			return nil, authz.Action{}, &eventsourcing.InvalidCommandError{Msg: "SetSubscriptionToken is only accepted on the domain route"}
		}
		var b setSubscriptionTokenBody
		if err := decodeBody(body.Data, &b); err != nil {
			return nil, authz.Action{}, err
		}
		return labour.SetSubscriptionToken{Token: b.Token},
			authz.Action{Kind: authz.ActionSetSubscriptionToken, Domain: true}, nil

	default:
		return nil, authz.Action{}, &eventsourcing.InvalidCommandError{Msg: fmt.Sprintf("unknown labour command type %q", body.Type)}
	}
}

// decodeBody unmarshals and field-validates one command body.
func decodeBody(data []byte, dst any) error {
	if err := decodeData(data, dst); err != nil {
		return err
	}
	if err := validate.Struct(dst); err != nil {
		return &eventsourcing.ValidationError{Msg: fmt.Sprintf("invalid command data: %v", err)}
	}
	return nil
}
