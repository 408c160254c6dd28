package policy

import (
	"encoding/json"
	"fmt"
)

// EncodeEffect marshals effect to the opaque JSON the effect ledger
// persists, tagging it with its EffectType so DecodeEffect can dispatch
// back to the concrete variant.
func EncodeEffect(effect Effect) (json.RawMessage, error) {
	payload, err := json.Marshal(effect)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", errEncode, effect.EffectType(), err)
	}
	envelope := struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}{Type: effect.EffectType(), Payload: payload}
	return json.Marshal(envelope)
}

// DecodeEffect unmarshals a ledger row's effect_payload back into its
// concrete Effect variant.
func DecodeEffect(data json.RawMessage) (Effect, error) {
	var envelope struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", errDecode, err)
	}

	switch envelope.Type {
	case "SendNotification":
		var e SendNotification
		if err := json.Unmarshal(envelope.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: decode SendNotification: %v", errDecode, err)
		}
		return e, nil
	case "GenerateSubscriptionToken":
		var e GenerateSubscriptionToken
		if err := json.Unmarshal(envelope.Payload, &e); err != nil {
			return nil, fmt.Errorf("%w: decode GenerateSubscriptionToken: %v", errDecode, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: unknown effect type %q", errDecode, envelope.Type)
	}
}

var (
	errEncode = fmt.Errorf("policy: effect encode error")
	errDecode = fmt.Errorf("policy: effect decode error")
)
