// Package session tracks per-user elevation state. A user is either not
// elevated, temporarily elevated until a deadline, or elevated for the
// remainder of their logon session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/audit"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage"
)

// Manager owns the in-memory elevation sessions and sweeps expired ones.
type Manager struct {
	store  storage.Storage
	logger *slog.Logger
	clock  func() time.Time

	mu       sync.Mutex
	sessions map[string]*domain.ElevationSession
	timer    *time.Timer
	closed   bool
}

func NewManager(store storage.Storage, logger *slog.Logger) *Manager {
	return &Manager{
		store:    store,
		logger:   logger,
		clock:    func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*domain.ElevationSession),
	}
}

// Close stops the expiry sweep. Sessions already granted stay in memory but
// the manager is no longer usable.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// GrantTemporary elevates the user until the requested deadline. The profile
// must enable temporary elevation; requests beyond the profile maximum are
// clamped to it.
func (m *Manager) GrantTemporary(ctx context.Context, user domain.User, seconds int64) (*domain.ElevationSession, error) {
	if seconds <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", domain.ErrInvalidParameter)
	}

	snapshot, err := m.store.PolicySnapshot(ctx, user)
	if err != nil {
		return nil, accessError(err)
	}
	cfg := snapshot.Profile.Temporary
	if !cfg.Enabled {
		m.record(ctx, user, domain.OutcomeDenied, false)
		return nil, fmt.Errorf("%w: temporary elevation is disabled by policy", domain.ErrAccessDenied)
	}
	if cfg.MaximumSeconds > 0 && seconds > cfg.MaximumSeconds {
		seconds = cfg.MaximumSeconds
	}

	now := m.clock()
	session := &domain.ElevationSession{
		User:      user,
		State:     domain.StateTemporary,
		Method:    snapshot.Profile.ElevationMethod,
		GrantedAt: now,
		ExpiresAt: now.Add(time.Duration(seconds) * time.Second),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, domain.ErrInternal
	}
	m.sessions[user.Key()] = session
	m.rescheduleLocked()
	m.mu.Unlock()

	m.logger.Info("temporary elevation granted",
		"user", user.Key(), "seconds", seconds, "expires_at", session.ExpiresAt)
	m.record(ctx, user, domain.OutcomeTemporaryGranted, true)
	return session, nil
}

// GrantSession elevates the user until logoff or revocation.
func (m *Manager) GrantSession(ctx context.Context, user domain.User) (*domain.ElevationSession, error) {
	snapshot, err := m.store.PolicySnapshot(ctx, user)
	if err != nil {
		return nil, accessError(err)
	}
	if !snapshot.Profile.Session.Enabled {
		m.record(ctx, user, domain.OutcomeDenied, false)
		return nil, fmt.Errorf("%w: session elevation is disabled by policy", domain.ErrAccessDenied)
	}

	session := &domain.ElevationSession{
		User:      user,
		State:     domain.StateSession,
		Method:    snapshot.Profile.ElevationMethod,
		GrantedAt: m.clock(),
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, domain.ErrInternal
	}
	m.sessions[user.Key()] = session
	m.rescheduleLocked()
	m.mu.Unlock()

	m.logger.Info("session elevation granted", "user", user.Key())
	m.record(ctx, user, domain.OutcomeSessionGranted, true)
	return session, nil
}

// Revoke drops any elevation the user holds. Revoking a user who is not
// elevated is a no-op.
func (m *Manager) Revoke(ctx context.Context, user domain.User) {
	m.mu.Lock()
	_, had := m.sessions[user.Key()]
	delete(m.sessions, user.Key())
	m.rescheduleLocked()
	m.mu.Unlock()

	if had {
		m.logger.Info("elevation revoked", "user", user.Key())
		m.record(ctx, user, domain.OutcomeRevoked, true)
	}
}

// Logoff clears the user's elevation without writing a revocation record.
func (m *Manager) Logoff(user domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, had := m.sessions[user.Key()]; had {
		delete(m.sessions, user.Key())
		m.rescheduleLocked()
		m.logger.Info("elevation cleared on logoff", "user", user.Key())
	}
}

// Current returns the user's active session, or nil when the user is not
// elevated. An expired session found here is removed.
func (m *Manager) Current(user domain.User) *domain.ElevationSession {
	now := m.clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[user.Key()]
	if !ok {
		return nil
	}
	if !session.Active(now) {
		delete(m.sessions, user.Key())
		m.rescheduleLocked()
		return nil
	}
	copied := *session
	return &copied
}

// Status reports the user's elevation state together with what their profile
// permits. A user with no profile gets the zero status: not elevated, nothing
// available.
func (m *Manager) Status(ctx context.Context, user domain.User) (*domain.StatusResponse, error) {
	status := &domain.StatusResponse{}

	snapshot, err := m.store.PolicySnapshot(ctx, user)
	switch {
	case err == nil:
		status.Temporary.Enabled = snapshot.Profile.Temporary.Enabled
		status.Temporary.MaximumSeconds = snapshot.Profile.Temporary.MaximumSeconds
		status.Session.Enabled = snapshot.Profile.Session.Enabled
	case errors.Is(err, domain.ErrNotFound):
		// No assigned profile: report everything disabled.
	default:
		return nil, accessError(err)
	}

	if session := m.Current(user); session != nil {
		status.Elevated = true
		if session.State == domain.StateTemporary {
			left := session.ExpiresAt.Sub(m.clock())
			if left < 0 {
				left = 0
			}
			status.Temporary.TimeLeft = int64(left / time.Second)
		}
	}
	return status, nil
}

// rescheduleLocked arms the sweep timer for the soonest temporary expiry.
// Callers hold m.mu.
func (m *Manager) rescheduleLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.closed {
		return
	}

	var soonest time.Time
	for _, session := range m.sessions {
		if session.State != domain.StateTemporary {
			continue
		}
		if soonest.IsZero() || session.ExpiresAt.Before(soonest) {
			soonest = session.ExpiresAt
		}
	}
	if soonest.IsZero() {
		return
	}

	wait := soonest.Sub(m.clock())
	if wait < 0 {
		wait = 0
	}
	m.timer = time.AfterFunc(wait, m.sweep)
}

// sweep drops every expired temporary session and re-arms the timer.
func (m *Manager) sweep() {
	now := m.clock()
	m.mu.Lock()
	var expired []domain.User
	for key, session := range m.sessions {
		if session.State == domain.StateTemporary && !session.Active(now) {
			delete(m.sessions, key)
			expired = append(expired, session.User)
		}
	}
	m.rescheduleLocked()
	m.mu.Unlock()

	for _, user := range expired {
		m.logger.Info("temporary elevation expired", "user", user.Key())
	}
}

func (m *Manager) record(ctx context.Context, user domain.User, outcome string, success bool) {
	audit.Record(ctx, m.store, m.logger, &domain.AuditEntry{
		User:    user,
		Outcome: outcome,
		Success: success,
	})
}

// accessError maps repository failures to the caller-facing taxonomy: a
// missing policy is an access problem, anything else is internal.
func accessError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: no elevation profile assigned", domain.ErrAccessDenied)
	}
	return fmt.Errorf("%w: loading policy", domain.ErrInternal)
}
