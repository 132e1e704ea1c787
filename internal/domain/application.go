package domain

// SignatureStatus is the trust classification of a binary's code-signing
// certificate chain.
type SignatureStatus string

const (
	SignatureValid             SignatureStatus = "Valid"
	SignatureIncompatible      SignatureStatus = "Incompatible"
	SignatureNotSigned         SignatureStatus = "NotSigned"
	SignatureHashMismatch      SignatureStatus = "HashMismatch"
	SignatureUnsupportedFormat SignatureStatus = "UnsupportedFormat"
	SignatureNotTrusted        SignatureStatus = "NotTrusted"
)

// Hash holds the content digests of a file, computed in a single pass.
type Hash struct {
	SHA1   string `json:"sha1" db:"sha1"`
	SHA256 string `json:"sha256" db:"sha256"`
}

// Signer describes the signing authority of a binary.
type Signer struct {
	Issuer string `json:"issuer"`
}

// Certificate is one element of a signature's certificate chain.
type Certificate struct {
	Issuer       string   `json:"issuer"`
	Subject      string   `json:"subject"`
	SerialNumber string   `json:"serial_number"`
	Thumbprint   Hash     `json:"thumbprint"`
	Base64       string   `json:"base64"`
	EKU          []string `json:"eku,omitempty"`
}

// Signature is the signature verdict for a binary, with the signer and
// certificate chain when one is present.
type Signature struct {
	Status       SignatureStatus `json:"status"`
	Signer       *Signer         `json:"signer,omitempty"`
	Certificates []Certificate   `json:"certificates,omitempty"`
}

// ApplicationIdentity is the normalized description of a program as captured
// by the OS-facing identity resolver. It is immutable once captured for a
// given request.
type ApplicationIdentity struct {
	Path             string    `json:"path"`
	CommandLine      []string  `json:"command_line"`
	WorkingDirectory string    `json:"working_directory"`
	Signature        Signature `json:"signature"`
	Hash             Hash      `json:"hash"`
	User             User      `json:"user"`
}

// Valid reports whether the identity carries the fields every elevation
// decision requires.
func (a ApplicationIdentity) Valid() bool {
	return a.Path != "" && !a.User.IsZero()
}
