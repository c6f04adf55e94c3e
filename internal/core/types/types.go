package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Percent represents a commission percentage with full precision.
// Uses decimal.Decimal to avoid floating-point errors on settlement math.
type Percent = decimal.Decimal

// NewPercentFromString creates a Percent from its string form.
// This is the preferred constructor for values coming off the wire.
func NewPercentFromString(s string) (Percent, error) {
	return decimal.NewFromString(s)
}

// MustPercent creates a Percent from a string, panics on error.
// Use only for constants and tests.
func MustPercent(s string) Percent {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// SalesArrangement describes how stock is held for its owner.
type SalesArrangement string

const (
	// ArrangementConsignment - stock held on consignment; a commission
	// percent applies on sale.
	ArrangementConsignment SalesArrangement = "consignment"
	// ArrangementPurchased - stock bought outright.
	ArrangementPurchased SalesArrangement = "purchased"
)

// Valid reports whether the arrangement is one of the known values.
func (a SalesArrangement) Valid() bool {
	return a == ArrangementConsignment || a == ArrangementPurchased
}

// ParseSalesArrangement validates a raw arrangement string.
func ParseSalesArrangement(s string) (SalesArrangement, error) {
	a := SalesArrangement(s)
	if !a.Valid() {
		return "", fmt.Errorf("unknown sales arrangement: %q", s)
	}
	return a, nil
}
