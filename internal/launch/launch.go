// Package launch runs the elevated-launch flow: resolve the target, ask
// policy, enforce the consent gate, start the process and record what
// happened.
package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/audit"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/identity"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/policy"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/session"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
)

// Executor starts a process with elevated rights. The real implementation is
// platform code living with the agent.
type Executor interface {
	Launch(ctx context.Context, req domain.LaunchRequest, user domain.User, method domain.ElevationMethod) (*domain.LaunchResponse, error)
}

// Service coordinates one elevated launch end to end.
type Service struct {
	store    storage.Storage
	engine   *policy.Engine
	sessions *session.Manager
	apps     identity.ApplicationResolver
	executor Executor
	logger   *slog.Logger
}

func NewService(store storage.Storage, engine *policy.Engine, sessions *session.Manager,
	apps identity.ApplicationResolver, executor Executor, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		sessions: sessions,
		apps:     apps,
		executor: executor,
		logger:   logger,
	}
}

// Launch validates the request, decides elevation, checks consent and starts
// the process. A user holding an active elevation session skips the consent
// gates entirely.
func (s *Service) Launch(ctx context.Context, req domain.LaunchRequest, asker domain.ApplicationIdentity, user domain.User) (*domain.LaunchResponse, error) {
	exe := req.ExecutablePath
	if exe == "" {
		if len(req.CommandLine) == 0 {
			return nil, fmt.Errorf("%w: neither executable path nor command line given", domain.ErrInvalidParameter)
		}
		exe = req.CommandLine[0]
	}

	target, err := s.apps.FromPath(ctx, exe, user)
	if err != nil {
		return nil, err
	}
	target.CommandLine = req.CommandLine
	target.WorkingDirectory = req.WorkingDirectory

	method, err := s.authorize(ctx, req, asker, target, user)
	if err != nil {
		return nil, err
	}

	resp, err := s.executor.Launch(ctx, req, user, method)
	entry := &domain.AuditEntry{
		User:            user,
		AskerPath:       asker.Path,
		TargetPath:      target.Path,
		TargetHash:      target.Hash,
		TargetSignature: target.Signature.Status,
	}
	if err != nil {
		entry.Outcome = domain.OutcomeLaunchFailed
		audit.Record(ctx, s.store, s.logger, entry)
		s.logger.Error("launch failed", "user", user.Key(), "target", target.Path, "error", err)
		if errors.Is(err, domain.ErrCancelled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: starting process", domain.ErrInternal)
	}

	entry.Outcome = domain.OutcomeLaunchSucceeded
	entry.Success = true
	audit.Record(ctx, s.store, s.logger, entry)
	s.logger.Info("launch succeeded",
		"user", user.Key(), "target", target.Path, "pid", resp.ProcessID)
	return resp, nil
}

// authorize returns the elevation method to launch with, or an error when
// policy or consent forbids the launch.
func (s *Service) authorize(ctx context.Context, req domain.LaunchRequest,
	asker, target domain.ApplicationIdentity, user domain.User) (domain.ElevationMethod, error) {

	if active := s.sessions.Current(user); active != nil {
		audit.Record(ctx, s.store, s.logger, &domain.AuditEntry{
			User:            user,
			AskerPath:       asker.Path,
			TargetPath:      target.Path,
			TargetHash:      target.Hash,
			TargetSignature: target.Signature.Status,
			Outcome:         domain.OutcomeSessionElevated,
			Success:         true,
		})
		return active.Method, nil
	}

	decision, err := s.engine.Decide(ctx, domain.ElevationRequest{
		Asker:  asker,
		Target: target,
		User:   user,
	})
	if err != nil {
		return "", err
	}

	if !req.Consent.Satisfies(decision.Kind) {
		audit.Record(ctx, s.store, s.logger, &domain.AuditEntry{
			User:            user,
			AskerPath:       asker.Path,
			TargetPath:      target.Path,
			TargetHash:      target.Hash,
			TargetSignature: target.Signature.Status,
			Outcome:         domain.OutcomeConsentMissing,
		})
		return "", fmt.Errorf("%w: launch requires %s", domain.ErrCancelled, consentName(decision.Kind))
	}
	return decision.Method, nil
}

func consentName(kind domain.ElevationKind) string {
	if kind == domain.ElevationReasonApproval {
		return "a justification"
	}
	return "confirmation"
}
