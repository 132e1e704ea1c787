package domain

import "time"

// Audit outcome codes. One entry is written for every decision, every
// session transition, and every launch attempt.
const (
	OutcomeAutoApproved      = "AutoApproved"
	OutcomeConfirmRequired   = "ConfirmRequired"
	OutcomeReasonRequired    = "ReasonRequired"
	OutcomeDenied            = "Denied"
	OutcomeNoProfile         = "NoProfile"
	OutcomePolicyError       = "PolicyError"
	OutcomeTemporaryGranted  = "TemporaryGranted"
	OutcomeSessionGranted    = "SessionGranted"
	OutcomeRevoked           = "Revoked"
	OutcomeLaunchSucceeded   = "LaunchSucceeded"
	OutcomeLaunchFailed      = "LaunchFailed"
	OutcomeConsentMissing    = "ConsentMissing"
	OutcomeSessionElevated   = "SessionElevated"
)

// AuditEntry is one append-only record of the audit trail. Entries are keyed
// by a monotonically increasing id; id order is chronological order.
type AuditEntry struct {
	ID              int64           `json:"id" db:"id"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
	User            User            `json:"user"`
	AskerPath       string          `json:"asker_path" db:"asker_path"`
	TargetPath      string          `json:"target_path" db:"target_path"`
	TargetHash      Hash            `json:"target_hash"`
	TargetSignature SignatureStatus `json:"target_signature" db:"target_signature"`
	Outcome         string          `json:"outcome" db:"outcome"`
	Success         bool            `json:"success" db:"success"`
}

// Audit sort columns accepted by queries. An unknown column falls back to
// SortByTimestamp.
const (
	SortByTimestamp  = "timestamp"
	SortByOutcome    = "outcome"
	SortByTargetPath = "target_path"
	SortByUser       = "user"
)

// AuditQuery selects and orders a page of audit entries.
type AuditQuery struct {
	User           *User     `json:"user,omitempty"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	SortColumn     string    `json:"sort_column"`
	SortDescending bool      `json:"sort_descending"`
	PageNumber     int       `json:"page_number"`
	PageSize       int       `json:"page_size"`
}

// AuditPage is one page of audit query results, with totals computed against
// the same snapshot as the rows.
type AuditPage struct {
	TotalRecords int64        `json:"total_records"`
	TotalPages   int          `json:"total_pages"`
	Entries      []AuditEntry `json:"entries"`
}
