package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

func TestHeaderResolver(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Pedm-Account-Name", "alice")
	r.Header.Set("X-Pedm-Domain-Name", "CONTOSO")
	r.Header.Set("X-Pedm-Account-Sid", "S-1-5-21-1")
	r.Header.Set("X-Pedm-Domain-Sid", "S-1-5-21")

	user, err := HeaderResolver{}.ResolveCaller(r)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.AccountName)
	assert.Equal(t, "S-1-5-21-1", user.AccountSID)
}

func TestHeaderResolverMissingSID(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set("X-Pedm-Account-Name", "alice")

	_, err := HeaderResolver{}.ResolveCaller(r)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestFileResolverHashes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tool.exe")
	content := []byte("not actually a binary")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	user := domain.User{AccountSID: "S-1-5-21-1", DomainSID: "S-1-5-21"}
	app, err := FileResolver{}.FromPath(context.Background(), path, user)
	require.NoError(t, err)

	want := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(want[:]), app.Hash.SHA256)
	assert.NotEmpty(t, app.Hash.SHA1)
	assert.Equal(t, domain.SignatureNotSigned, app.Signature.Status)
	assert.Equal(t, user, app.User)
}

func TestFileResolverMissingFile(t *testing.T) {
	_, err := FileResolver{}.FromPath(context.Background(), filepath.Join(t.TempDir(), "missing.exe"), domain.User{})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFileResolverEmptyPath(t *testing.T) {
	_, err := FileResolver{}.FromPath(context.Background(), "", domain.User{})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}
