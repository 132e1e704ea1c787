package domain

import "time"

// Rule pairs an asker filter and a target filter with the elevation kind to
// apply when both match.
type Rule struct {
	ID            string            `json:"id" db:"id"`
	Name          string            `json:"name" db:"name"`
	ElevationKind ElevationKind     `json:"elevation_kind" db:"elevation_kind"`
	Asker         ApplicationFilter `json:"asker" db:"-"`
	Target        ApplicationFilter `json:"target" db:"-"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at" db:"updated_at"`
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	Name          string            `json:"name" validate:"required"`
	ElevationKind ElevationKind     `json:"elevation_kind" validate:"required"`
	Asker         ApplicationFilter `json:"asker"`
	Target        ApplicationFilter `json:"target"`
}

// UpdateRuleRequest is the request body for updating a rule.
type UpdateRuleRequest struct {
	Name          string            `json:"name" validate:"required"`
	ElevationKind ElevationKind     `json:"elevation_kind" validate:"required"`
	Asker         ApplicationFilter `json:"asker"`
	Target        ApplicationFilter `json:"target"`
}
