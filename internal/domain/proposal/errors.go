package proposal

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package.
var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidProposal   = errors.New("invalid proposal")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	ProposalID string
	From       Status
	To         Status
	Reason     string
}

func (e *TransitionError) Error() string {
	switch {
	case e.Reason != "":
		return fmt.Sprintf("invalid transition for proposal %s: %s", e.ProposalID, e.Reason)
	case e.From.Terminal():
		return fmt.Sprintf("invalid transition for proposal %s: proposal already %s", e.ProposalID, e.From)
	default:
		return fmt.Sprintf("invalid transition for proposal %s: %s -> %s not allowed", e.ProposalID, e.From, e.To)
	}
}

// Is makes errors.Is(err, ErrInvalidTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
