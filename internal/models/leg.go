package models

import "github.com/shopspring/decimal"

// Leg is one tradable instrument within a trade.
type Leg struct {
	Symbol     string
	Side       Side
	Quantity   int
	EntryPrice decimal.Decimal
	ExitPrice  *decimal.Decimal // nil while the leg is open
	Multiplier int
	EntryCosts CommissionFees
	ExitCosts  *CommissionFees // nil while the leg is open
	// CloseReason is optional free text recorded on a leg-level close.
	CloseReason string
}

// IsClosed reports whether the leg has an exit price.
func (l *Leg) IsClosed() bool {
	return l.ExitPrice != nil
}

// IsExpired reports whether the leg was closed worthless at 0.00.
func (l *Leg) IsExpired() bool {
	return l.ExitPrice != nil && l.ExitPrice.IsZero()
}

// TotalCosts returns entry plus exit commission and fees for the leg.
func (l *Leg) TotalCosts() decimal.Decimal {
	total := l.EntryCosts.Total()
	if l.ExitCosts != nil {
		total = total.Add(l.ExitCosts.Total())
	}
	return total
}

// SignedEntry returns the entry price signed by credit convention:
// positive for premium received (SELL), negative for premium paid (BUY).
func (l *Leg) SignedEntry() decimal.Decimal {
	if l.Side == SideSell {
		return l.EntryPrice
	}
	return l.EntryPrice.Neg()
}

// SignedExit returns the exit price under the same credit convention,
// or zero for an open leg.
func (l *Leg) SignedExit() decimal.Decimal {
	if l.ExitPrice == nil {
		return decimal.Zero
	}
	if l.Side == SideSell {
		return *l.ExitPrice
	}
	return l.ExitPrice.Neg()
}

// Clone returns a deep copy of the leg.
func (l *Leg) Clone() *Leg {
	cp := *l
	if l.ExitPrice != nil {
		v := *l.ExitPrice
		cp.ExitPrice = &v
	}
	if l.ExitCosts != nil {
		v := *l.ExitCosts
		cp.ExitCosts = &v
	}
	return &cp
}
