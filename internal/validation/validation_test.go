package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

func validTarget() domain.ApplicationFilter {
	return domain.ApplicationFilter{
		Path: domain.PathFilter{Kind: domain.PathWildcard, Pattern: `C:\Tools\*`},
	}
}

func TestValidateRuleRequest(t *testing.T) {
	err := ValidateRuleRequest("allow tools", domain.ElevationConfirm, validTarget(), validTarget())
	assert.NoError(t, err)
}

func TestValidateRuleRequestUnknownKind(t *testing.T) {
	err := ValidateRuleRequest("r", "Maybe", validTarget(), validTarget())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elevation_kind")
}

func TestValidateRuleRequestEmptyPathPattern(t *testing.T) {
	bad := domain.ApplicationFilter{Path: domain.PathFilter{Kind: domain.PathEquals}}
	err := ValidateRuleRequest("r", domain.ElevationDeny, validTarget(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target.path")
}

func TestValidateRuleRequestBadRegex(t *testing.T) {
	bad := validTarget()
	bad.CommandLine = []domain.StringFilter{{Kind: domain.StringRegex, Pattern: "("}}
	err := ValidateRuleRequest("r", domain.ElevationDeny, validTarget(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid regular expression")
}

func TestValidateRuleRequestBadHash(t *testing.T) {
	bad := validTarget()
	bad.Hashes = []domain.HashFilter{{SHA256: "not-hex"}}
	err := ValidateRuleRequest("r", domain.ElevationDeny, validTarget(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sha256")

	empty := validTarget()
	empty.Hashes = []domain.HashFilter{{}}
	err = ValidateRuleRequest("r", domain.ElevationDeny, validTarget(), empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest")
}

func TestValidateRuleRequestValidHashes(t *testing.T) {
	good := validTarget()
	good.Hashes = []domain.HashFilter{{
		SHA1:   strings.Repeat("ab", 20),
		SHA256: strings.Repeat("cd", 32),
	}}
	assert.NoError(t, ValidateRuleRequest("r", domain.ElevationAutoApprove, validTarget(), good))
}

func TestValidateProfileRequest(t *testing.T) {
	err := ValidateProfileRequest("workstations", domain.ElevationDeny, domain.MethodLocalAdmin,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 3600})
	assert.NoError(t, err)
}

func TestValidateProfileRequestBadTemporaryMaximum(t *testing.T) {
	err := ValidateProfileRequest("workstations", domain.ElevationDeny, domain.MethodLocalAdmin,
		domain.TemporaryElevationConfig{Enabled: true, MaximumSeconds: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum_seconds")
}

func TestValidateProfileRequestUnknownMethod(t *testing.T) {
	err := ValidateProfileRequest("workstations", domain.ElevationDeny, "RootShell",
		domain.TemporaryElevationConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "elevation_method")
}

func TestValidateStructRequired(t *testing.T) {
	err := ValidateStruct(domain.CreateRuleRequest{})
	require.Error(t, err)

	var errs ValidationErrors
	require.ErrorAs(t, err, &errs)
	assert.True(t, errs.HasErrors())
}
