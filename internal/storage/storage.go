// Package storage defines the persistence boundary for policy entities and
// the audit trail.
package storage

import (
	"context"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

// Storage is the policy repository and audit log store.
//
// Implementations must be safe for concurrent use. Reads used by the
// decision engine (PolicySnapshot, audit queries) must observe an atomic,
// internally consistent state; writes to one entity must be serialized with
// respect to each other but must not block writers of other entities.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// API keys (admin surface)
	CreateAPIKey(ctx context.Context, key *domain.APIKey) error
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*domain.APIKey, error)
	DeleteAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	CountAPIKeys(ctx context.Context) (int, error)

	// Profiles. Creating or updating a profile with a rule id that does not
	// exist fails with domain.ErrInvalidParameter. Deleting a profile
	// removes its assignments and any active-profile selections of it.
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	ListProfiles(ctx context.Context) ([]*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
	DeleteProfile(ctx context.Context, id string) error

	// Rules. Deleting a rule still referenced by a profile fails with
	// domain.ErrInvalidParameter.
	CreateRule(ctx context.Context, rule *domain.Rule) error
	GetRule(ctx context.Context, id string) (*domain.Rule, error)
	ListRules(ctx context.Context) ([]*domain.Rule, error)
	UpdateRule(ctx context.Context, rule *domain.Rule) error
	DeleteRule(ctx context.Context, id string) error

	// Assignments map a profile to the users it governs. SetAssignment
	// replaces the user set wholesale.
	GetAssignment(ctx context.Context, profileID string) (*domain.Assignment, error)
	ListAssignments(ctx context.Context) ([]*domain.Assignment, error)
	SetAssignment(ctx context.Context, profileID string, users []domain.User) error

	// Active profile selection. A user may select only a profile they are
	// assigned to; SetActiveProfile fails with domain.ErrInvalidParameter
	// otherwise. GetActiveProfileID returns "" when no explicit selection
	// exists.
	SetActiveProfile(ctx context.Context, user domain.User, profileID string) error
	GetActiveProfileID(ctx context.Context, user domain.User) (string, error)
	ProfilesForUser(ctx context.Context, user domain.User) ([]*domain.Profile, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	// PolicySnapshot resolves the user's active profile (explicit selection,
	// else the first assigned profile by creation time) together with its
	// rules in precedence order, atomically. Returns domain.ErrNotFound when
	// the user has no assigned profile.
	PolicySnapshot(ctx context.Context, user domain.User) (*domain.PolicySnapshot, error)

	// Audit trail. AppendAuditEntry assigns the entry's monotonic id and
	// timestamp ordering; entries are never mutated or deleted.
	AppendAuditEntry(ctx context.Context, entry *domain.AuditEntry) error
	GetAuditEntry(ctx context.Context, id int64) (*domain.AuditEntry, error)
	QueryAuditEntries(ctx context.Context, q domain.AuditQuery) (*domain.AuditPage, error)
}
