package domain

// PathFilterKind selects how a PathFilter compares against a path.
type PathFilterKind string

const (
	PathEquals   PathFilterKind = "Equals"
	PathFileName PathFilterKind = "FileName"
	PathWildcard PathFilterKind = "Wildcard"
)

// PathFilter matches a filesystem path. All comparisons are
// case-insensitive, per platform path semantics.
type PathFilter struct {
	Kind    PathFilterKind `json:"kind"`
	Pattern string         `json:"pattern"`
}

// StringFilterKind selects how a StringFilter compares against a string.
type StringFilterKind string

const (
	StringEquals     StringFilterKind = "Equals"
	StringRegex      StringFilterKind = "Regex"
	StringStartsWith StringFilterKind = "StartsWith"
	StringEndsWith   StringFilterKind = "EndsWith"
	StringContains   StringFilterKind = "Contains"
)

// StringFilter matches a single command-line token.
type StringFilter struct {
	Kind    StringFilterKind `json:"kind"`
	Pattern string           `json:"pattern"`
}

// HashFilter matches a content hash. At least one field must be set; a set
// field must equal the identity's corresponding digest.
type HashFilter struct {
	SHA1   string `json:"sha1,omitempty"`
	SHA256 string `json:"sha256,omitempty"`
}

// Empty reports whether no digest is set.
func (f HashFilter) Empty() bool {
	return f.SHA1 == "" && f.SHA256 == ""
}

// SignatureFilter constrains the signature verdict of an application.
type SignatureFilter struct {
	RequireValidSignature bool `json:"require_valid_signature"`
}

// ApplicationFilter is a declarative description of a set of applications.
// Absent optional fields match anything on that dimension.
type ApplicationFilter struct {
	Path             PathFilter       `json:"path"`
	WorkingDirectory *PathFilter      `json:"working_directory,omitempty"`
	CommandLine      []StringFilter   `json:"command_line,omitempty"`
	Hashes           []HashFilter     `json:"hashes,omitempty"`
	Signature        *SignatureFilter `json:"signature,omitempty"`
}
