// Package domain defines the core types shared across the simulation:
// identifiers, traded pairs, orders, notifications, and error reasons.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DateTime is a nanosecond-resolution simulation timestamp.
type DateTime int64

// Add returns dt shifted by d nanoseconds.
func (dt DateTime) Add(d int64) DateTime {
	return dt + DateTime(d)
}

// OrderID identifies an order within whatever scope currently owns it
// (submitter scope, broker-internal scope, or exchange-internal scope).
// A bare uint64 rather than a pointer: the three id namespaces described
// in spec.md §3/§9 are bijective integer maps, never pointer graphs.
type OrderID uint64

// Price is a signed count of price-steps. The quoted decimal price is
// Price.ToDecimal(step) = int64(price) * step.
type Price int64

// Size is a signed order quantity in price-step-independent units.
type Size int64

// PriceStep is the positive real scale factor mapping a Price to its
// quoted decimal value. Represented exactly via decimal.Decimal instead
// of float64 so that FromDecimal/ToDecimal round-trip without an epsilon
// guard (see SPEC_FULL.md §3).
type PriceStep struct {
	Value decimal.Decimal
}

// NewPriceStep wraps a positive decimal as a PriceStep. Panics if step <= 0;
// a non-positive price step is a construction-time configuration bug, not a
// runtime condition any operation can recover from.
func NewPriceStep(step decimal.Decimal) PriceStep {
	if step.Sign() <= 0 {
		panic(fmt.Sprintf("price step must be positive, got %s", step.String()))
	}
	return PriceStep{Value: step}
}

// ToDecimal converts a Price to its quoted decimal value given a price step.
func (p Price) ToDecimal(step PriceStep) decimal.Decimal {
	return decimal.NewFromInt(int64(p)).Mul(step.Value)
}

// PriceFromDecimal converts a quoted decimal value to a Price, given a price
// step. Panics if the value is not an exact multiple of the step — this
// mirrors the source's from_f64 precision panic (spec.md glossary: "Price
// step"), except exactly rather than within an epsilon.
func PriceFromDecimal(value decimal.Decimal, step PriceStep) Price {
	quotient := value.DivRound(step.Value, 0)
	reconstructed := quotient.Mul(step.Value)
	if !reconstructed.Equal(value) {
		panic(fmt.Sprintf(
			"cannot convert %s to Price without loss of precision at step %s",
			value.String(), step.Value.String(),
		))
	}
	return Price(quotient.IntPart())
}

// ExchangeID, BrokerID, TraderID, and Symbol are opaque, totally-ordered,
// hashable, copyable tokens (spec.md §3). Plain strings satisfy all four
// properties without needing a generic Identifier constraint.
type (
	ExchangeID string
	BrokerID   string
	TraderID   string
	Symbol     string
)
