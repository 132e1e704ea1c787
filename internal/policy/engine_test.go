package policy

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
	"github.com/Devolutions/devolutions-gateway-sub001/internal/storage/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var anyApplication = domain.ApplicationFilter{
	Path: domain.PathFilter{Kind: domain.PathWildcard, Pattern: "*"},
}

func fileNameFilter(name string) domain.ApplicationFilter {
	return domain.ApplicationFilter{
		Path: domain.PathFilter{Kind: domain.PathFileName, Pattern: name},
	}
}

func identity(user domain.User, path string) domain.ApplicationIdentity {
	return domain.ApplicationIdentity{Path: path, User: user}
}

// seedPolicy builds a profile for alice with the given rules and a Deny
// default, returning alice and the store.
func seedPolicy(t *testing.T, rules ...*domain.Rule) (*memory.Store, domain.User) {
	t.Helper()
	store := memory.New()
	ctx := context.Background()

	ids := make([]string, 0, len(rules))
	for _, rule := range rules {
		rule.CreatedAt = time.Now().UTC()
		rule.UpdatedAt = rule.CreatedAt
		require.NoError(t, store.CreateRule(ctx, rule))
		ids = append(ids, rule.ID)
	}

	profile := &domain.Profile{
		ID:                   "profile-1",
		Name:                 "dev workstations",
		DefaultElevationKind: domain.ElevationDeny,
		ElevationMethod:      domain.MethodVirtualAccount,
		RuleIDs:              ids,
		CreatedAt:            time.Now().UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	require.NoError(t, store.CreateProfile(ctx, profile))

	alice := domain.User{AccountName: "alice", DomainName: "CONTOSO", AccountSID: "S-1-5-21-1", DomainSID: "S-1-5-21"}
	require.NoError(t, store.SetAssignment(ctx, profile.ID, []domain.User{alice}))
	return store, alice
}

func auditEntries(t *testing.T, store *memory.Store) []domain.AuditEntry {
	t.Helper()
	page, err := store.QueryAuditEntries(context.Background(), domain.AuditQuery{
		SortColumn: domain.SortByTimestamp, PageSize: 100, PageNumber: 1,
	})
	require.NoError(t, err)
	return page.Entries
}

func TestDecideFirstMatchWins(t *testing.T) {
	store, alice := seedPolicy(t,
		&domain.Rule{ID: "r1", Name: "regedit needs confirmation", ElevationKind: domain.ElevationConfirm,
			Asker: anyApplication, Target: fileNameFilter("regedit.exe")},
		&domain.Rule{ID: "r2", Name: "catch all auto", ElevationKind: domain.ElevationAutoApprove,
			Asker: anyApplication, Target: anyApplication},
	)
	engine := NewEngine(store, discardLogger())

	decision, err := engine.Decide(context.Background(), domain.ElevationRequest{
		Asker:  identity(alice, `C:\Windows\explorer.exe`),
		Target: identity(alice, `C:\Windows\regedit.exe`),
		User:   alice,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ElevationConfirm, decision.Kind)
	assert.Equal(t, domain.MethodVirtualAccount, decision.Method)

	decision, err = engine.Decide(context.Background(), domain.ElevationRequest{
		Asker:  identity(alice, `C:\Windows\explorer.exe`),
		Target: identity(alice, `C:\Windows\notepad.exe`),
		User:   alice,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ElevationAutoApprove, decision.Kind)
}

func TestDecideNotepadLaunchingRegedit(t *testing.T) {
	store, alice := seedPolicy(t,
		&domain.Rule{ID: "r1", Name: "regedit from notepad", ElevationKind: domain.ElevationConfirm,
			Asker: fileNameFilter("notepad.exe"), Target: fileNameFilter("regedit.exe")},
		&domain.Rule{ID: "r2", Name: "default auto", ElevationKind: domain.ElevationAutoApprove,
			Asker: anyApplication, Target: anyApplication},
	)
	engine := NewEngine(store, discardLogger())

	decision, err := engine.Decide(context.Background(), domain.ElevationRequest{
		Asker:  identity(alice, `C:\Windows\notepad.exe`),
		Target: identity(alice, `C:\Windows\regedit.exe`),
		User:   alice,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ElevationConfirm, decision.Kind)
}

func TestDecideDefaultApplies(t *testing.T) {
	store, alice := seedPolicy(t,
		&domain.Rule{ID: "r1", Name: "tools only", ElevationKind: domain.ElevationAutoApprove,
			Asker: anyApplication,
			Target: domain.ApplicationFilter{
				Path: domain.PathFilter{Kind: domain.PathWildcard, Pattern: `C:\Tools\*`},
			}},
	)
	engine := NewEngine(store, discardLogger())

	_, err := engine.Decide(context.Background(), domain.ElevationRequest{
		Asker:  identity(alice, `C:\Windows\explorer.exe`),
		Target: identity(alice, `C:\Windows\cmd.exe`),
		User:   alice,
	})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	entries := auditEntries(t, store)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutcomeDenied, entries[0].Outcome)
	assert.False(t, entries[0].Success)
}

func TestDecideAskerMustMatchToo(t *testing.T) {
	store, alice := seedPolicy(t,
		&domain.Rule{ID: "r1", Name: "only from explorer", ElevationKind: domain.ElevationAutoApprove,
			Asker: fileNameFilter("explorer.exe"), Target: anyApplication},
	)
	engine := NewEngine(store, discardLogger())

	_, err := engine.Decide(context.Background(), domain.ElevationRequest{
		Asker:  identity(alice, `C:\Windows\System32\cmd.exe`),
		Target: identity(alice, `C:\Windows\notepad.exe`),
		User:   alice,
	})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)
}

func TestDecideNoProfileDenies(t *testing.T) {
	store := memory.New()
	engine := NewEngine(store, discardLogger())

	mallory := domain.User{AccountName: "mallory", AccountSID: "S-1-5-21-9", DomainSID: "S-1-5-21"}
	_, err := engine.Decide(context.Background(), domain.ElevationRequest{
		Asker:  identity(mallory, `C:\Windows\explorer.exe`),
		Target: identity(mallory, `C:\Windows\cmd.exe`),
		User:   mallory,
	})
	assert.ErrorIs(t, err, domain.ErrAccessDenied)

	entries := auditEntries(t, store)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutcomeNoProfile, entries[0].Outcome)
}

func TestDecideInvalidRequestNotAudited(t *testing.T) {
	store, alice := seedPolicy(t)
	engine := NewEngine(store, discardLogger())

	_, err := engine.Decide(context.Background(), domain.ElevationRequest{
		Target: domain.ApplicationIdentity{User: alice}, // no path
		User:   alice,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
	assert.Empty(t, auditEntries(t, store))
}

func TestDecideWritesOneEntryPerEvaluation(t *testing.T) {
	store, alice := seedPolicy(t,
		&domain.Rule{ID: "r1", Name: "auto", ElevationKind: domain.ElevationAutoApprove,
			Asker: anyApplication, Target: anyApplication},
	)
	engine := NewEngine(store, discardLogger())

	req := domain.ElevationRequest{
		Asker:  identity(alice, `C:\Windows\explorer.exe`),
		Target: identity(alice, `C:\Windows\notepad.exe`),
		User:   alice,
	}
	for i := 0; i < 3; i++ {
		_, err := engine.Decide(context.Background(), req)
		require.NoError(t, err)
	}

	entries := auditEntries(t, store)
	require.Len(t, entries, 3)
	for _, entry := range entries {
		assert.Equal(t, domain.OutcomeAutoApproved, entry.Outcome)
		assert.True(t, entry.Success)
		assert.Equal(t, `C:\Windows\notepad.exe`, entry.TargetPath)
	}
}
