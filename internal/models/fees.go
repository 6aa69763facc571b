package models

import "github.com/shopspring/decimal"

// CommissionFees is the broker's fee breakdown for one fill.
type CommissionFees struct {
	Commission     decimal.Decimal
	ExchangeFees   decimal.Decimal
	RegulatoryFees decimal.Decimal
}

// ZeroFees returns an explicit zero-cost record. Spread legs that do not
// carry the spread's order fee hold one of these rather than a nil record.
func ZeroFees() CommissionFees {
	return CommissionFees{
		Commission:     decimal.Zero,
		ExchangeFees:   decimal.Zero,
		RegulatoryFees: decimal.Zero,
	}
}

// Total returns commission plus all fees.
func (c CommissionFees) Total() decimal.Decimal {
	return c.Commission.Add(c.ExchangeFees).Add(c.RegulatoryFees)
}

// IsZero reports whether no cost component is set.
func (c CommissionFees) IsZero() bool {
	return c.Total().IsZero()
}
