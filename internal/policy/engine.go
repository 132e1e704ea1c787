// Package policy decides what happens when a user asks to elevate an
// application. The decision walks the user's active profile rules in order
// and falls back to the profile default.
package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/audit"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/match"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
)

// Engine evaluates elevation requests against stored policy. Every
// well-formed evaluation writes exactly one audit entry.
type Engine struct {
	store  storage.Storage
	logger *slog.Logger
}

func NewEngine(store storage.Storage, logger *slog.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Decide evaluates the request. The first rule whose asker and target filters
// both match wins; with no match the profile default applies. A user with no
// assigned profile is denied. Repository failures deny and surface as
// internal errors so a broken policy store never grants elevation.
func (e *Engine) Decide(ctx context.Context, req domain.ElevationRequest) (*domain.Decision, error) {
	if !req.Target.Valid() {
		return nil, fmt.Errorf("%w: target application is incomplete", domain.ErrInvalidParameter)
	}

	entry := &domain.AuditEntry{
		Timestamp:       req.Timestamp,
		User:            req.User,
		AskerPath:       req.Asker.Path,
		TargetPath:      req.Target.Path,
		TargetHash:      req.Target.Hash,
		TargetSignature: req.Target.Signature.Status,
	}

	snapshot, err := e.store.PolicySnapshot(ctx, req.User)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			entry.Outcome = domain.OutcomeNoProfile
			audit.Record(ctx, e.store, e.logger, entry)
			return nil, fmt.Errorf("%w: no elevation profile assigned", domain.ErrAccessDenied)
		}
		e.logger.Error("policy snapshot failed", "user", req.User.Key(), "error", err)
		entry.Outcome = domain.OutcomePolicyError
		audit.Record(ctx, e.store, e.logger, entry)
		return nil, fmt.Errorf("%w: loading policy", domain.ErrInternal)
	}

	kind := snapshot.Profile.DefaultElevationKind
	matchedRule := ""
	for _, rule := range snapshot.Rules {
		if match.Matches(rule.Asker, req.Asker) && match.Matches(rule.Target, req.Target) {
			kind = rule.ElevationKind
			matchedRule = rule.ID
			break
		}
	}

	decision := &domain.Decision{Kind: kind, Method: snapshot.Profile.ElevationMethod}
	entry.Outcome = outcomeFor(kind)
	entry.Success = kind != domain.ElevationDeny
	audit.Record(ctx, e.store, e.logger, entry)

	e.logger.Debug("elevation decided",
		"user", req.User.Key(),
		"target", req.Target.Path,
		"kind", string(kind),
		"rule", matchedRule)

	if kind == domain.ElevationDeny {
		return nil, fmt.Errorf("%w: elevation denied by policy", domain.ErrAccessDenied)
	}
	return decision, nil
}

func outcomeFor(kind domain.ElevationKind) string {
	switch kind {
	case domain.ElevationAutoApprove:
		return domain.OutcomeAutoApproved
	case domain.ElevationConfirm:
		return domain.OutcomeConfirmRequired
	case domain.ElevationReasonApproval:
		return domain.OutcomeReasonRequired
	default:
		return domain.OutcomeDenied
	}
}
