// Package identity resolves who is asking and what they are asking to run.
// Platform-specific pieces (token inspection, Authenticode verification) sit
// behind interfaces so the core stays portable and testable.
package identity

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

// CallerResolver maps an incoming request to the requesting user account.
type CallerResolver interface {
	ResolveCaller(r *http.Request) (domain.User, error)
}

// ApplicationResolver builds the identity of an executable on disk or of a
// running process.
type ApplicationResolver interface {
	FromPath(ctx context.Context, path string, user domain.User) (domain.ApplicationIdentity, error)
	FromProcess(ctx context.Context, pid uint32) (domain.ApplicationIdentity, error)
}

// HeaderResolver reads the caller's account from trusted gateway headers.
// The fronting gateway authenticates the agent connection and stamps these
// headers; the service itself never sees credentials.
type HeaderResolver struct{}

const (
	headerAccountName = "X-Pedm-Account-Name"
	headerDomainName  = "X-Pedm-Domain-Name"
	headerAccountSID  = "X-Pedm-Account-Sid"
	headerDomainSID   = "X-Pedm-Domain-Sid"
)

func (HeaderResolver) ResolveCaller(r *http.Request) (domain.User, error) {
	user := domain.User{
		AccountName: r.Header.Get(headerAccountName),
		DomainName:  r.Header.Get(headerDomainName),
		AccountSID:  r.Header.Get(headerAccountSID),
		DomainSID:   r.Header.Get(headerDomainSID),
	}
	if user.AccountSID == "" || user.DomainSID == "" {
		return domain.User{}, fmt.Errorf("%w: caller identity headers missing", domain.ErrUnauthorized)
	}
	return user, nil
}

// FileResolver resolves application identities by reading the executable
// from disk. Signature verification is platform work it does not attempt;
// binaries come back NotSigned.
type FileResolver struct{}

func (FileResolver) FromPath(ctx context.Context, path string, user domain.User) (domain.ApplicationIdentity, error) {
	if path == "" {
		return domain.ApplicationIdentity{}, fmt.Errorf("%w: empty executable path", domain.ErrInvalidParameter)
	}
	hash, err := hashFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ApplicationIdentity{}, fmt.Errorf("%w: executable %s", domain.ErrNotFound, path)
		}
		return domain.ApplicationIdentity{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return domain.ApplicationIdentity{
		Path:      path,
		Hash:      hash,
		Signature: domain.Signature{Status: domain.SignatureNotSigned},
		User:      user,
	}, nil
}

func (FileResolver) FromProcess(ctx context.Context, pid uint32) (domain.ApplicationIdentity, error) {
	return domain.ApplicationIdentity{}, fmt.Errorf("%w: process inspection is not available on this platform", domain.ErrInternal)
}

// hashFile computes both digests in one read of the file.
func hashFile(path string) (domain.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.Hash{}, err
	}
	defer f.Close()

	h1 := sha1.New()
	h256 := sha256.New()
	if _, err := io.Copy(io.MultiWriter(h1, h256), f); err != nil {
		return domain.Hash{}, err
	}
	return domain.Hash{
		SHA1:   hex.EncodeToString(h1.Sum(nil)),
		SHA256: hex.EncodeToString(h256.Sum(nil)),
	}, nil
}
