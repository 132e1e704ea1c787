// Package match evaluates application filters against application
// identities. Evaluation is pure and total: any well-formed filter yields a
// verdict for any identity, and a malformed pattern matches nothing rather
// than failing.
package match

import (
	"regexp"
	"strings"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

// Matches reports whether the identity satisfies every dimension of the
// filter. Absent optional dimensions match anything.
func Matches(f domain.ApplicationFilter, app domain.ApplicationIdentity) bool {
	if !Path(f.Path, app.Path) {
		return false
	}
	if f.WorkingDirectory != nil && !Path(*f.WorkingDirectory, app.WorkingDirectory) {
		return false
	}
	if !commandLine(f.CommandLine, app.CommandLine) {
		return false
	}
	if !hashes(f.Hashes, app.Hash) {
		return false
	}
	if f.Signature != nil && f.Signature.RequireValidSignature && app.Signature.Status != domain.SignatureValid {
		return false
	}
	return true
}

// Path reports whether the path satisfies the path filter. Comparison is
// case-insensitive on every kind.
func Path(f domain.PathFilter, path string) bool {
	if f.Pattern == "" {
		return false
	}
	pattern := strings.ToLower(f.Pattern)
	candidate := strings.ToLower(path)

	switch f.Kind {
	case domain.PathEquals:
		return candidate == pattern
	case domain.PathFileName:
		return baseName(candidate) == baseName(pattern)
	case domain.PathWildcard:
		return glob(pattern, candidate)
	}
	return false
}

// String reports whether the token satisfies the string filter.
func String(f domain.StringFilter, s string) bool {
	switch f.Kind {
	case domain.StringEquals:
		return s == f.Pattern
	case domain.StringRegex:
		re, err := regexp.Compile(f.Pattern)
		return err == nil && re.MatchString(s)
	case domain.StringStartsWith:
		return strings.HasPrefix(s, f.Pattern)
	case domain.StringEndsWith:
		return strings.HasSuffix(s, f.Pattern)
	case domain.StringContains:
		return strings.Contains(s, f.Pattern)
	}
	return false
}

// commandLine applies the AND-of-ORs rule: every filter entry must find at
// least one satisfying token anywhere in the command line. Position is not
// considered.
func commandLine(filters []domain.StringFilter, tokens []string) bool {
	for _, f := range filters {
		found := false
		for _, tok := range tokens {
			if String(f, tok) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// hashes matches when any entry matches (logical OR). Within an entry, every
// digest that is set must equal the identity's digest. Entries with no
// digest set match nothing.
func hashes(filters []domain.HashFilter, h domain.Hash) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f.Empty() {
			continue
		}
		if f.SHA1 != "" && !strings.EqualFold(f.SHA1, h.SHA1) {
			continue
		}
		if f.SHA256 != "" && !strings.EqualFold(f.SHA256, h.SHA256) {
			continue
		}
		return true
	}
	return false
}

// baseName returns the final path segment, accepting both separators since
// identities are captured with platform-native paths.
func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

// glob matches pattern against name in full, where '*' matches any run of
// characters including separators and '?' matches exactly one character.
// Iterative with single-star backtracking, so it cannot blow the stack on
// hostile patterns.
func glob(pattern, name string) bool {
	px, nx := 0, 0
	starPx, starNx := -1, -1

	for nx < len(name) {
		if px < len(pattern) {
			switch pattern[px] {
			case '*':
				starPx, starNx = px, nx
				px++
				continue
			case '?':
				px++
				nx++
				continue
			default:
				if pattern[px] == name[nx] {
					px++
					nx++
					continue
				}
			}
		}
		if starPx >= 0 {
			starNx++
			px = starPx + 1
			nx = starNx
			continue
		}
		return false
	}
	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}
