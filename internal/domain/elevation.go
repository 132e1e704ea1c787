package domain

import "time"

// ElevationRequest asks whether the asker may run the target with elevated
// rights on behalf of the user.
type ElevationRequest struct {
	Asker     ApplicationIdentity `json:"asker"`
	Target    ApplicationIdentity `json:"target"`
	User      User                `json:"user"`
	Timestamp time.Time           `json:"timestamp"`
}

// Decision is the outcome of evaluating an elevation request against policy.
// Kind may require a confirmation or justification round-trip outside the
// core; the decision itself never blocks on one.
type Decision struct {
	Kind   ElevationKind   `json:"kind"`
	Method ElevationMethod `json:"method"`
}

// Consent carries a caller-supplied gate resolution for Confirm and
// ReasonApproval decisions.
type Consent struct {
	Confirmed bool   `json:"confirmed,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Satisfies reports whether the consent resolves the gate required by kind.
func (c Consent) Satisfies(kind ElevationKind) bool {
	switch kind {
	case ElevationAutoApprove:
		return true
	case ElevationConfirm:
		return c.Confirmed
	case ElevationReasonApproval:
		return c.Reason != ""
	}
	return false
}
