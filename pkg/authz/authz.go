package authz

import (
	"fmt"

	"github.com/fern-labour/labour-core/pkg/eventsourcing"
)

// DeniedError reports which capability a principal was missing. It wraps
// eventsourcing.ErrAuthorisation so callers can test with errors.Is
// against the shared sentinel while the host's error log still gets the
// denied action and principal.
type DeniedError struct {
	Principal PrincipalKind
	Action    Action
	Required  Capability
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s lacks capability %s required for %s (domain=%v)", e.Principal, e.Required, e.Action.Kind, e.Action.Domain)
}

func (e *DeniedError) Unwrap() error { return eventsourcing.ErrAuthorisation }

// Authorise allows an action iff capabilities_for(principal) ⊇
// {required_capability(action)}. capNone (RequestAccess's token-gated
// entry) is satisfied by every principal, including Unassociated.
func Authorise(principal Principal, action Action) error {
	required := RequiredCapability(action)
	if required == capNone {
		return nil
	}
	if Has(CapabilitiesFor(principal), required) {
		return nil
	}
	return &DeniedError{Principal: principal.Kind, Action: action, Required: required}
}
