package com

import (
	"strings"

	"github.com/google/uuid"

	"github.com/wippyai/dxcompat/errors"
)

// GUID is a 128-bit interface or class identifier.
type GUID uuid.UUID

// NilGUID is the all-zero identifier. It never names an interface.
var NilGUID GUID

// ParseGUID parses the registry form, with or without braces:
// "8ba5fb08-5195-40e2-ac58-0d989c3a0102" or "{8BA5FB08-...}".
func ParseGUID(s string) (GUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilGUID, errors.Wrap(errors.PhaseQuery, errors.KindInvalidData, err, "parse GUID "+s)
	}
	return GUID(u), nil
}

// MustParseGUID is ParseGUID for package-level identifiers.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

// String returns the braced upper-case registry form.
func (g GUID) String() string {
	return "{" + strings.ToUpper(uuid.UUID(g).String()) + "}"
}

// IsNil reports whether g is the all-zero identifier.
func (g GUID) IsNil() bool {
	return g == NilGUID
}
