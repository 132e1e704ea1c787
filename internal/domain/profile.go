package domain

import "time"

// ElevationKind is the policy verdict for an elevation request.
type ElevationKind string

const (
	ElevationAutoApprove    ElevationKind = "AutoApprove"
	ElevationConfirm        ElevationKind = "Confirm"
	ElevationReasonApproval ElevationKind = "ReasonApproval"
	ElevationDeny           ElevationKind = "Deny"
)

// ValidElevationKind reports whether k is one of the closed set of kinds.
func ValidElevationKind(k ElevationKind) bool {
	switch k {
	case ElevationAutoApprove, ElevationConfirm, ElevationReasonApproval, ElevationDeny:
		return true
	}
	return false
}

// ElevationMethod is the mechanism used to grant elevated rights.
type ElevationMethod string

const (
	MethodLocalAdmin     ElevationMethod = "LocalAdmin"
	MethodVirtualAccount ElevationMethod = "VirtualAccount"
)

// ValidElevationMethod reports whether m is a known method.
func ValidElevationMethod(m ElevationMethod) bool {
	return m == MethodLocalAdmin || m == MethodVirtualAccount
}

// TemporaryElevationConfig governs time-boxed elevation grants.
type TemporaryElevationConfig struct {
	Enabled        bool  `json:"enabled"`
	MaximumSeconds int64 `json:"maximum_seconds"`
}

// SessionElevationConfig governs elevation grants that last until revoke or
// logoff.
type SessionElevationConfig struct {
	Enabled bool `json:"enabled"`
}

// Profile is a named bundle of elevation settings and ordered rules assigned
// to users. RuleIDs is the match-precedence order: the first matching rule
// wins.
type Profile struct {
	ID                   string                   `json:"id" db:"id"`
	Name                 string                   `json:"name" db:"name"`
	Description          string                   `json:"description,omitempty" db:"description"`
	DefaultElevationKind ElevationKind            `json:"default_elevation_kind" db:"default_elevation_kind"`
	ElevationMethod      ElevationMethod          `json:"elevation_method" db:"elevation_method"`
	Temporary            TemporaryElevationConfig `json:"temporary" db:"-"`
	Session              SessionElevationConfig   `json:"session" db:"-"`
	PromptSecureDesktop  bool                     `json:"prompt_secure_desktop" db:"prompt_secure_desktop"`
	RuleIDs              []string                 `json:"rule_ids" db:"-"`
	CreatedAt            time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at" db:"updated_at"`
}

// CreateProfileRequest is the request body for creating a profile.
type CreateProfileRequest struct {
	Name                 string                   `json:"name" validate:"required"`
	Description          string                   `json:"description"`
	DefaultElevationKind ElevationKind            `json:"default_elevation_kind" validate:"required"`
	ElevationMethod      ElevationMethod          `json:"elevation_method" validate:"required"`
	Temporary            TemporaryElevationConfig `json:"temporary"`
	Session              SessionElevationConfig   `json:"session"`
	PromptSecureDesktop  bool                     `json:"prompt_secure_desktop"`
	RuleIDs              []string                 `json:"rule_ids"`
}

// UpdateProfileRequest is the request body for updating a profile.
type UpdateProfileRequest struct {
	Name                 string                   `json:"name" validate:"required"`
	Description          string                   `json:"description"`
	DefaultElevationKind ElevationKind            `json:"default_elevation_kind" validate:"required"`
	ElevationMethod      ElevationMethod          `json:"elevation_method" validate:"required"`
	Temporary            TemporaryElevationConfig `json:"temporary"`
	Session              SessionElevationConfig   `json:"session"`
	PromptSecureDesktop  bool                     `json:"prompt_secure_desktop"`
	RuleIDs              []string                 `json:"rule_ids"`
}
