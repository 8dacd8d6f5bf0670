// Package model defines the core data types shared across the aggregation
// pipeline: identifiers, per-provider source records, the merged per-artist
// view, and score breakdowns.
package model

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrInvalidISRC is returned when an identifier does not match the ISRC
// grammar. It is a validation failure, detected before any network call.
var ErrInvalidISRC = eris.New("model: invalid ISRC")

// isrcPattern is the normalized ISRC grammar: 2-letter country code,
// 3-character registrant code, 2-digit year, 5-character designation.
var isrcPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{3}[0-9]{2}[A-Z0-9]{5}$`)

// ISRC is a normalized International Standard Recording Code: 12 characters,
// uppercase, separators stripped.
type ISRC string

// ParseISRC validates and normalizes a raw identifier. Input is
// case-insensitive and may contain dash or space separators.
func ParseISRC(raw string) (ISRC, error) {
	norm := strings.ToUpper(strings.TrimSpace(raw))
	norm = strings.NewReplacer("-", "", " ", "").Replace(norm)

	if !isrcPattern.MatchString(norm) {
		return "", eris.Wrapf(ErrInvalidISRC, "%q", raw)
	}
	return ISRC(norm), nil
}

// String returns the normalized 12-character code.
func (i ISRC) String() string { return string(i) }

// CountryCode returns the 2-letter country prefix of the code.
func (i ISRC) CountryCode() string {
	if len(i) < 2 {
		return ""
	}
	return string(i[:2])
}

// RegistrantCode returns the 3-character registrant segment.
func (i ISRC) RegistrantCode() string {
	if len(i) < 5 {
		return ""
	}
	return string(i[2:5])
}
