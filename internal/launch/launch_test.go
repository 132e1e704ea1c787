package launch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/policy"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/session"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage/memory"
)

// fakeApps resolves every path to a fixed identity without touching disk.
type fakeApps struct{}

func (fakeApps) FromPath(_ context.Context, path string, user domain.User) (domain.ApplicationIdentity, error) {
	return domain.ApplicationIdentity{
		Path:      path,
		Hash:      domain.Hash{SHA256: "deadbeef"},
		Signature: domain.Signature{Status: domain.SignatureNotSigned},
		User:      user,
	}, nil
}

func (fakeApps) FromProcess(_ context.Context, _ uint32) (domain.ApplicationIdentity, error) {
	return domain.ApplicationIdentity{}, domain.ErrInternal
}

// fakeExecutor records the launch it was asked for.
type fakeExecutor struct {
	launched []string
	method   domain.ElevationMethod
	err      error
}

func (e *fakeExecutor) Launch(_ context.Context, req domain.LaunchRequest, _ domain.User, method domain.ElevationMethod) (*domain.LaunchResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	exe := req.ExecutablePath
	if exe == "" && len(req.CommandLine) > 0 {
		exe = req.CommandLine[0]
	}
	e.launched = append(e.launched, exe)
	e.method = method
	return &domain.LaunchResponse{ProcessID: 4242, ThreadID: 4243}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T, kind domain.ElevationKind) (*Service, *fakeExecutor, *session.Manager, *memory.Store, domain.User) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	rule := &domain.Rule{
		ID:            "r1",
		Name:          "everything",
		ElevationKind: kind,
		Asker:         domain.ApplicationFilter{Path: domain.PathFilter{Kind: domain.PathWildcard, Pattern: "*"}},
		Target:        domain.ApplicationFilter{Path: domain.PathFilter{Kind: domain.PathWildcard, Pattern: "*"}},
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.CreateRule(ctx, rule))
	profile := &domain.Profile{
		ID:                   "p1",
		Name:                 "default",
		DefaultElevationKind: domain.ElevationDeny,
		ElevationMethod:      domain.MethodLocalAdmin,
		Temporary:            domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 3600},
		Session:              domain.SessionElevationConfig{Enabled: true},
		RuleIDs:              []string{rule.ID},
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	require.NoError(t, store.CreateProfile(ctx, profile))

	user := domain.User{AccountName: "alice", DomainName: "CONTOSO", AccountSID: "S-1-5-21-1", DomainSID: "S-1-5-21"}
	require.NoError(t, store.SetAssignment(ctx, profile.ID, []domain.User{user}))

	logger := discardLogger()
	sessions := session.NewManager(store, logger)
	t.Cleanup(sessions.Close)
	executor := &fakeExecutor{}
	svc := NewService(store, policy.NewEngine(store, logger), sessions, fakeApps{}, executor, logger)
	return svc, executor, sessions, store, user
}

func asker(user domain.User) domain.ApplicationIdentity {
	return domain.ApplicationIdentity{Path: `C:\Windows\explorer.exe`, User: user}
}

func TestLaunchAutoApprove(t *testing.T) {
	svc, executor, _, _, user := setup(t, domain.ElevationAutoApprove)

	resp, err := svc.Launch(context.Background(),
		domain.LaunchRequest{ExecutablePath: `C:\Windows\notepad.exe`},
		asker(user), user)
	require.NoError(t, err)
	assert.Equal(t, uint32(4242), resp.ProcessID)
	assert.Equal(t, []string{`C:\Windows\notepad.exe`}, executor.launched)
	assert.Equal(t, domain.MethodLocalAdmin, executor.method)
}

func TestLaunchDerivesExecutableFromCommandLine(t *testing.T) {
	svc, executor, _, _, user := setup(t, domain.ElevationAutoApprove)

	_, err := svc.Launch(context.Background(),
		domain.LaunchRequest{CommandLine: []string{`C:\Tools\deploy.exe`, "--force"}},
		asker(user), user)
	require.NoError(t, err)
	assert.Equal(t, []string{`C:\Tools\deploy.exe`}, executor.launched)
}

func TestLaunchNothingToRun(t *testing.T) {
	svc, _, _, _, user := setup(t, domain.ElevationAutoApprove)

	_, err := svc.Launch(context.Background(), domain.LaunchRequest{}, asker(user), user)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestLaunchConfirmRequiresConsent(t *testing.T) {
	svc, executor, _, _, user := setup(t, domain.ElevationConfirm)

	_, err := svc.Launch(context.Background(),
		domain.LaunchRequest{ExecutablePath: `C:\Windows\regedit.exe`},
		asker(user), user)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, executor.launched)

	_, err = svc.Launch(context.Background(),
		domain.LaunchRequest{
			ExecutablePath: `C:\Windows\regedit.exe`,
			Consent:        domain.Consent{Confirmed: true},
		},
		asker(user), user)
	require.NoError(t, err)
	assert.Len(t, executor.launched, 1)
}

func TestLaunchReasonApprovalRequiresReason(t *testing.T) {
	svc, _, _, _, user := setup(t, domain.ElevationReasonApproval)

	_, err := svc.Launch(context.Background(),
		domain.LaunchRequest{
			ExecutablePath: `C:\Windows\cmd.exe`,
			Consent:        domain.Consent{Confirmed: true},
		},
		asker(user), user)
	assert.ErrorIs(t, err, domain.ErrCancelled)

	_, err = svc.Launch(context.Background(),
		domain.LaunchRequest{
			ExecutablePath: `C:\Windows\cmd.exe`,
			Consent:        domain.Consent{Reason: "installing drivers"},
		},
		asker(user), user)
	require.NoError(t, err)
}

func TestLaunchSessionBypassesGates(t *testing.T) {
	svc, executor, sessions, _, user := setup(t, domain.ElevationConfirm)

	_, err := sessions.GrantSession(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.Launch(context.Background(),
		domain.LaunchRequest{ExecutablePath: `C:\Windows\regedit.exe`},
		asker(user), user)
	require.NoError(t, err)
	assert.Len(t, executor.launched, 1)
}

func TestLaunchDeniedNotExecuted(t *testing.T) {
	svc, executor, _, _, user := setup(t, domain.ElevationDeny)

	_, err := svc.Launch(context.Background(),
		domain.LaunchRequest{ExecutablePath: `C:\Windows\cmd.exe`},
		asker(user), user)
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
	assert.Empty(t, executor.launched)
}

func TestLaunchExecutorFailureAudited(t *testing.T) {
	svc, executor, _, store, user := setup(t, domain.ElevationAutoApprove)
	executor.err = errors.New("process creation failed")

	_, err := svc.Launch(context.Background(),
		domain.LaunchRequest{ExecutablePath: `C:\Windows\notepad.exe`},
		asker(user), user)
	assert.ErrorIs(t, err, domain.ErrInternal)

	page, err := store.QueryAuditEntries(context.Background(), domain.AuditQuery{
		SortColumn: domain.SortByTimestamp, PageSize: 100, PageNumber: 1,
	})
	require.NoError(t, err)
	var sawFailure bool
	for _, entry := range page.Entries {
		if entry.Outcome == domain.OutcomeLaunchFailed {
			sawFailure = true
			assert.False(t, entry.Success)
		}
	}
	assert.True(t, sawFailure)
}
