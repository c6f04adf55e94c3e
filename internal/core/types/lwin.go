// Package types provides domain value types shared across the ledger.
package types

import (
	"fmt"
	"strconv"
)

// LWIN18 is the product axis of the stock ledger: an 18-digit composite key
// encoding wine + vintage (LWIN11, first 11 digits), bottles per case
// (2 digits) and bottle size in millilitres (5 digits).
//
// Example: 10123452015 06 00750 = LWIN11 10123452015, 6x750ml.
type LWIN18 string

// ParseLWIN18 validates the raw identifier shape.
func ParseLWIN18(s string) (LWIN18, error) {
	if len(s) != 18 {
		return "", fmt.Errorf("lwin18 must be 18 digits, got %d", len(s))
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("lwin18 must be numeric: %q", s)
		}
	}
	if LWIN18(s).CaseConfig() == 0 {
		return "", fmt.Errorf("lwin18 case config segment is zero: %q", s)
	}
	return LWIN18(s), nil
}

// LWIN11 returns the wine+vintage prefix shared by all pack configurations
// of the same wine.
func (l LWIN18) LWIN11() string {
	if len(l) != 18 {
		return string(l)
	}
	return string(l[:11])
}

// CaseConfig returns bottles per case encoded in digits 12-13, or 0 when the
// identifier is malformed.
func (l LWIN18) CaseConfig() int {
	if len(l) != 18 {
		return 0
	}
	n, err := strconv.Atoi(string(l[11:13]))
	if err != nil {
		return 0
	}
	return n
}

// BottleSizeML returns the bottle size segment in millilitres.
func (l LWIN18) BottleSizeML() int {
	if len(l) != 18 {
		return 0
	}
	n, err := strconv.Atoi(string(l[13:18]))
	if err != nil {
		return 0
	}
	return n
}

// WithCaseConfig derives the identifier for the same wine and bottle size
// in a different case configuration. Used by the repack engine: the target
// product identity differs from the source only in this segment.
func (l LWIN18) WithCaseConfig(bottlesPerCase int) (LWIN18, error) {
	if len(l) != 18 {
		return "", fmt.Errorf("lwin18 must be 18 digits, got %d", len(l))
	}
	if bottlesPerCase < 1 || bottlesPerCase > 99 {
		return "", fmt.Errorf("case config out of range: %d", bottlesPerCase)
	}
	derived := fmt.Sprintf("%s%02d%s", l[:11], bottlesPerCase, l[13:])
	return LWIN18(derived), nil
}

func (l LWIN18) String() string { return string(l) }
