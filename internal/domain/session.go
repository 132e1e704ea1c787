package domain

import "time"

// ElevationState names the per-user session state.
type ElevationState string

const (
	StateNone      ElevationState = "None"
	StateTemporary ElevationState = "Temporary"
	StateSession   ElevationState = "Session"
)

// ElevationSession is the current elevation grant for one user.
type ElevationSession struct {
	User      User            `json:"user"`
	State     ElevationState  `json:"state"`
	Method    ElevationMethod `json:"method,omitempty"`
	GrantedAt time.Time       `json:"granted_at,omitzero"`
	ExpiresAt time.Time       `json:"expires_at,omitzero"` // Temporary only
}

// Active reports whether the session grants elevation at the given instant.
func (s ElevationSession) Active(now time.Time) bool {
	switch s.State {
	case StateSession:
		return true
	case StateTemporary:
		return now.Before(s.ExpiresAt)
	}
	return false
}

// TemporaryStatus describes the temporary elevation mode for a status query.
type TemporaryStatus struct {
	Enabled        bool  `json:"enabled"`
	MaximumSeconds int64 `json:"maximum_seconds"`
	TimeLeft       int64 `json:"time_left"`
}

// SessionModeStatus describes the session elevation mode for a status query.
type SessionModeStatus struct {
	Enabled bool `json:"enabled"`
}

// StatusResponse is the answer to a session status query.
type StatusResponse struct {
	Elevated  bool              `json:"elevated"`
	Session   SessionModeStatus `json:"session"`
	Temporary TemporaryStatus   `json:"temporary"`
}

// GrantTemporaryRequest is the request body for a temporary elevation grant.
type GrantTemporaryRequest struct {
	Seconds int64 `json:"seconds" validate:"required"`
}
