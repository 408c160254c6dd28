package processmanager

import (
	"encoding/json"
	"fmt"

	"github.com/fern-labour/labour-core/pkg/policy"
)

// encodeEffect splits an effect into the (effect_type, effect_payload)
// pair the effect_ledger table stores. Unlike
// policy.EncodeEffect, which wraps the type tag inside the JSON blob for
// effects that travel outside this process, this keeps the type in its
// own column so the ledger can filter/report by it directly.
func encodeEffect(effect policy.Effect) (string, json.RawMessage, error) {
	data, err := json.Marshal(effect)
	if err != nil {
		return "", nil, fmt.Errorf("encode effect %s: %w", effect.EffectType(), err)
	}
	return effect.EffectType(), data, nil
}

// decodeEffect is encodeEffect's inverse, used when reloading ledger rows
// for dispatch. It recognises both the Labour policy engine's effects and
// the priority fast-path's own RenderRequest/DispatchRequest variants,
// since both share the same ledger table.
func decodeEffect(effectType string, payload json.RawMessage) (policy.Effect, error) {
	switch effectType {
	case "SendNotification":
		var e policy.SendNotification
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode SendNotification: %w", err)
		}
		return e, nil
	case "GenerateSubscriptionToken":
		var e policy.GenerateSubscriptionToken
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode GenerateSubscriptionToken: %w", err)
		}
		return e, nil
	case "RenderRequest":
		var e RenderRequest
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode RenderRequest: %w", err)
		}
		return e, nil
	case "DispatchRequest":
		var e DispatchRequest
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode DispatchRequest: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("decode effect: unknown type %q", effectType)
	}
}
