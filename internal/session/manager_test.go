package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupManager(t *testing.T, temp domain.TemporaryElevationConfig, sess domain.SessionElevationConfig) (*Manager, *memory.Store, *fakeClock, domain.User) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	profile := &domain.Profile{
		ID:                   "profile-1",
		Name:                 "workstation admins",
		DefaultElevationKind: domain.ElevationDeny,
		ElevationMethod:      domain.MethodLocalAdmin,
		Temporary:            temp,
		Session:              sess,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	require.NoError(t, store.CreateProfile(ctx, profile))

	user := domain.User{AccountName: "alice", DomainName: "CONTOSO", AccountSID: "S-1-5-21-1", DomainSID: "S-1-5-21"}
	require.NoError(t, store.SetAssignment(ctx, profile.ID, []domain.User{user}))

	clock := &fakeClock{now: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)}
	mgr := NewManager(store, discardLogger())
	mgr.clock = clock.Now
	t.Cleanup(mgr.Close)
	return mgr, store, clock, user
}

func TestGrantTemporary(t *testing.T) {
	mgr, _, clock, user := setupManager(t,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 3600},
		domain.SessionElevationConfig{})

	session, err := mgr.GrantTemporary(context.Background(), user, 60)
	require.NoError(t, err)
	assert.Equal(t, domain.StateTemporary, session.State)
	assert.Equal(t, clock.Now().Add(60*time.Second), session.ExpiresAt)

	status, err := mgr.Status(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, status.Elevated)
	assert.Equal(t, int64(60), status.Temporary.TimeLeft)

	clock.Advance(30 * time.Second)
	status, err = mgr.Status(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, status.Elevated)
	assert.Equal(t, int64(30), status.Temporary.TimeLeft)
}

func TestGrantTemporaryClampsToMaximum(t *testing.T) {
	mgr, _, clock, user := setupManager(t,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 300},
		domain.SessionElevationConfig{})

	session, err := mgr.GrantTemporary(context.Background(), user, 999999)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(300*time.Second), session.ExpiresAt)
}

func TestGrantTemporaryRejectsNonPositive(t *testing.T) {
	mgr, _, _, user := setupManager(t,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 300},
		domain.SessionElevationConfig{})

	_, err := mgr.GrantTemporary(context.Background(), user, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	_, err = mgr.GrantTemporary(context.Background(), user, -5)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestGrantTemporaryDisabledByPolicy(t *testing.T) {
	mgr, _, _, user := setupManager(t,
		domain.TemporaryElevationConfig{Enabled: false},
		domain.SessionElevationConfig{})

	_, err := mgr.GrantTemporary(context.Background(), user, 60)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestGrantTemporaryNoProfile(t *testing.T) {
	mgr := NewManager(memory.New(), discardLogger())
	t.Cleanup(mgr.Close)

	stranger := domain.User{AccountName: "mallory", AccountSID: "S-1-5-21-9", DomainSID: "S-1-5-21"}
	_, err := mgr.GrantTemporary(context.Background(), stranger, 60)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestTemporaryExpiresLazily(t *testing.T) {
	mgr, _, clock, user := setupManager(t,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 3600},
		domain.SessionElevationConfig{})

	_, err := mgr.GrantTemporary(context.Background(), user, 60)
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	assert.Nil(t, mgr.Current(user))

	status, err := mgr.Status(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, status.Elevated)
	assert.Zero(t, status.Temporary.TimeLeft)
}

func TestGrantSession(t *testing.T) {
	mgr, _, clock, user := setupManager(t,
		domain.TemporaryElevationConfig{},
		domain.SessionElevationConfig{Enabled: true})

	session, err := mgr.GrantSession(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSession, session.State)

	// Session elevation never expires on its own.
	clock.Advance(48 * time.Hour)
	assert.NotNil(t, mgr.Current(user))
}

func TestGrantSessionDisabledByPolicy(t *testing.T) {
	mgr, _, _, user := setupManager(t,
		domain.TemporaryElevationConfig{},
		domain.SessionElevationConfig{Enabled: false})

	_, err := mgr.GrantSession(context.Background(), user)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestRevokeIsIdempotent(t *testing.T) {
	mgr, store, _, user := setupManager(t,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 3600},
		domain.SessionElevationConfig{})

	_, err := mgr.GrantTemporary(context.Background(), user, 60)
	require.NoError(t, err)

	mgr.Revoke(context.Background(), user)
	assert.Nil(t, mgr.Current(user))

	// A second revoke succeeds and writes nothing.
	before, err := store.QueryAuditEntries(context.Background(), domain.AuditQuery{PageSize: 100, PageNumber: 1})
	require.NoError(t, err)
	mgr.Revoke(context.Background(), user)
	after, err := store.QueryAuditEntries(context.Background(), domain.AuditQuery{PageSize: 100, PageNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, before.TotalRecords, after.TotalRecords)
}

func TestLogoffClearsWithoutAudit(t *testing.T) {
	mgr, store, _, user := setupManager(t,
		domain.TemporaryElevationConfig{},
		domain.SessionElevationConfig{Enabled: true})

	_, err := mgr.GrantSession(context.Background(), user)
	require.NoError(t, err)

	before, err := store.QueryAuditEntries(context.Background(), domain.AuditQuery{PageSize: 100, PageNumber: 1})
	require.NoError(t, err)

	mgr.Logoff(user)
	assert.Nil(t, mgr.Current(user))

	after, err := store.QueryAuditEntries(context.Background(), domain.AuditQuery{PageSize: 100, PageNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, before.TotalRecords, after.TotalRecords)
}

func TestGrantsAreAudited(t *testing.T) {
	mgr, store, _, user := setupManager(t,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 3600},
		domain.SessionElevationConfig{Enabled: true})

	_, err := mgr.GrantTemporary(context.Background(), user, 60)
	require.NoError(t, err)
	mgr.Revoke(context.Background(), user)

	page, err := store.QueryAuditEntries(context.Background(), domain.AuditQuery{
		SortColumn: domain.SortByTimestamp, PageSize: 100, PageNumber: 1,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, domain.OutcomeTemporaryGranted, page.Entries[0].Outcome)
	assert.Equal(t, domain.OutcomeRevoked, page.Entries[1].Outcome)
}

func TestStatusNoProfile(t *testing.T) {
	mgr := NewManager(memory.New(), discardLogger())
	t.Cleanup(mgr.Close)

	stranger := domain.User{AccountName: "mallory", AccountSID: "S-1-5-21-9", DomainSID: "S-1-5-21"}
	status, err := mgr.Status(context.Background(), stranger)
	require.NoError(t, err)
	assert.False(t, status.Elevated)
	assert.False(t, status.Temporary.Enabled)
	assert.False(t, status.Session.Enabled)
}
