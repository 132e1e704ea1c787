// Package validation checks elevation policy entities before they reach
// storage. Structural checks run through go-playground/validator tags on the
// request types; the semantic rules for filters live here.
package validation

import (
	"encoding/hex"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/Devolutions/devolutions-gateway-sub001/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs the validate tags of a request type and converts the
// failures to field-level validation errors.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var errs ValidationErrors
	for _, fe := range fieldErrs {
		errs.Add(fe.Field(), fmt.Sprintf("%v", fe.Value()), fmt.Sprintf("failed '%s' validation", fe.Tag()))
	}
	return errs
}

// ValidateProfileRequest checks a profile create or update body.
func ValidateProfileRequest(name string, kind domain.ElevationKind, method domain.ElevationMethod, temp domain.TemporaryElevationConfig) error {
	var errs ValidationErrors
	if name == "" {
		errs.Add("name", name, "must not be empty")
	}
	if !domain.ValidElevationKind(kind) {
		errs.Add("default_elevation_kind", string(kind), "unknown elevation kind")
	}
	if !domain.ValidElevationMethod(method) {
		errs.Add("elevation_method", string(method), "unknown elevation method")
	}
	if temp.Enabled && temp.MaximumSeconds <= 0 {
		errs.Add("temporary.maximum_seconds", fmt.Sprintf("%d", temp.MaximumSeconds), "must be positive when temporary elevation is enabled")
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateRuleRequest checks a rule create or update body.
func ValidateRuleRequest(name string, kind domain.ElevationKind, asker, target domain.ApplicationFilter) error {
	var errs ValidationErrors
	if name == "" {
		errs.Add("name", name, "must not be empty")
	}
	if !domain.ValidElevationKind(kind) {
		errs.Add("elevation_kind", string(kind), "unknown elevation kind")
	}
	validateFilter(&errs, "asker", asker)
	validateFilter(&errs, "target", target)
	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateFilter(errs *ValidationErrors, prefix string, f domain.ApplicationFilter) {
	validatePathFilter(errs, prefix+".path", f.Path)
	if f.WorkingDirectory != nil {
		validatePathFilter(errs, prefix+".working_directory", *f.WorkingDirectory)
	}
	for i, sf := range f.CommandLine {
		field := fmt.Sprintf("%s.command_line[%d]", prefix, i)
		switch sf.Kind {
		case domain.StringEquals, domain.StringStartsWith, domain.StringEndsWith, domain.StringContains:
		case domain.StringRegex:
			if _, err := regexp.Compile(sf.Pattern); err != nil {
				errs.Add(field, sf.Pattern, "invalid regular expression")
			}
		default:
			errs.Add(field, string(sf.Kind), "unknown string filter kind")
		}
		if sf.Pattern == "" && sf.Kind != domain.StringEquals {
			errs.Add(field, sf.Pattern, "pattern must not be empty")
		}
	}
	for i, hf := range f.Hashes {
		field := fmt.Sprintf("%s.hashes[%d]", prefix, i)
		if hf.Empty() {
			errs.Add(field, "", "at least one digest must be set")
			continue
		}
		if hf.SHA1 != "" && !validHex(hf.SHA1, 20) {
			errs.Add(field+".sha1", hf.SHA1, "must be 40 hex characters")
		}
		if hf.SHA256 != "" && !validHex(hf.SHA256, 32) {
			errs.Add(field+".sha256", hf.SHA256, "must be 64 hex characters")
		}
	}
}

func validatePathFilter(errs *ValidationErrors, field string, f domain.PathFilter) {
	switch f.Kind {
	case domain.PathEquals, domain.PathFileName, domain.PathWildcard:
	default:
		errs.Add(field, string(f.Kind), "unknown path filter kind")
	}
	if f.Pattern == "" {
		errs.Add(field, f.Pattern, "pattern must not be empty")
	}
}

func validHex(s string, byteLen int) bool {
	raw, err := hex.DecodeString(s)
	return err == nil && len(raw) == byteLen
}
