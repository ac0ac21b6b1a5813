// Package statusflow is the single source of truth for legal status
// transitions. No other component may change a receipt's status without
// consulting it.
package statusflow

import (
	"fmt"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
	"github.com/joseph-ayodele/receipts-lifecycle/internal/common"
)

// validTransitions is the directed adjacency table of the status machine.
// payment_received is terminal and has no row.
var validTransitions = map[constants.Status][]constants.Status{
	constants.StatusPending: {
		constants.StatusProcessing,
		constants.StatusError,
	},
	constants.StatusProcessing: {
		constants.StatusProcessed,
		constants.StatusError,
		constants.StatusNoDataExtracted,
		constants.StatusRetry,
	},
	constants.StatusRetry: {
		constants.StatusProcessing,
		constants.StatusError,
		constants.StatusNoDataExtracted,
	},
	constants.StatusProcessed: {
		constants.StatusEmailed,
		constants.StatusError,
	},
	constants.StatusEmailed: {
		constants.StatusSubmitted,
		constants.StatusError,
	},
	constants.StatusSubmitted: {
		constants.StatusPaymentReceived,
		constants.StatusError,
	},
	constants.StatusError: {
		constants.StatusRetry,
		constants.StatusPending,
	},
	constants.StatusNoDataExtracted: {
		constants.StatusRetry,
		constants.StatusError,
	},
	constants.StatusPaymentReceived: {},
}

// TransitionError is the typed rejection for an illegal transition. It carries
// the legal-target list so callers can present the allowed next actions.
type TransitionError struct {
	From    constants.Status
	To      constants.Status
	Allowed []constants.Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s, valid next statuses: %v", e.From, e.To, e.Allowed)
}

func (e *TransitionError) Unwrap() error {
	return common.ErrInvalidTransition
}

// IsValid reports whether from -> to is a legal transition.
func IsValid(from, to constants.Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidTargets returns the legal next statuses from the given status, in table
// order. The returned slice is a copy.
func ValidTargets(from constants.Status) []constants.Status {
	row := validTransitions[from]
	out := make([]constants.Status, len(row))
	copy(out, row)
	return out
}

// Validate returns nil for a legal transition, or a *TransitionError carrying
// the legal-target list.
func Validate(from, to constants.Status) error {
	if IsValid(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to, Allowed: ValidTargets(from)}
}
