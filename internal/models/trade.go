package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is one position consisting of one or more legs.
//
// FeeLeg names the designated fee-bearing leg of a spread: the broker
// charges one commission per spread order, and that single charge is
// attached to this leg while siblings carry explicit zero-cost records.
type Trade struct {
	ID        string
	Timestamp time.Time
	Type      TradeType
	Strategy  string
	Legs      []*Leg
	FeeLeg    int
	Status    TradeStatus
	NetPnL    *decimal.Decimal // cached; must match what the P&L engine recomputes
	Risk      *Risk
	// OriginalQty records the open quantity before the first partial
	// close, so listings can show "remaining/original".
	OriginalQty int
}

// IsSpread reports whether the trade is a multi-leg spread.
func (t *Trade) IsSpread() bool {
	return t.Type == TypeOptionSpread
}

// FeeBearer returns the designated fee-bearing leg.
func (t *Trade) FeeBearer() *Leg {
	if t.FeeLeg < 0 || t.FeeLeg >= len(t.Legs) {
		return t.Legs[0]
	}
	return t.Legs[t.FeeLeg]
}

// DeriveStatus returns OPEN if any leg lacks an exit price.
func (t *Trade) DeriveStatus() TradeStatus {
	for _, l := range t.Legs {
		if !l.IsClosed() {
			return StatusOpen
		}
	}
	return StatusClosed
}

// RefreshStatus recomputes and stores the derived status.
func (t *Trade) RefreshStatus() {
	t.Status = t.DeriveStatus()
}

// OpenLegs returns the legs that have not been closed yet.
func (t *Trade) OpenLegs() []*Leg {
	var open []*Leg
	for _, l := range t.Legs {
		if !l.IsClosed() {
			open = append(open, l)
		}
	}
	return open
}

// FindLeg returns the leg with the given symbol, or nil.
func (t *Trade) FindLeg(symbol string) *Leg {
	for _, l := range t.Legs {
		if l.Symbol == symbol {
			return l
		}
	}
	return nil
}

// OpenQuantity returns the total quantity across open legs.
func (t *Trade) OpenQuantity() int {
	qty := 0
	for _, l := range t.Legs {
		if !l.IsClosed() {
			qty += l.Quantity
		}
	}
	return qty
}

// DisplayQuantity is the trade-level quantity for listings. For spreads
// this is the fee leg's quantity (number of spreads); summing across legs
// would double-count since every leg shares the spread count.
func (t *Trade) DisplayQuantity() int {
	if t.IsSpread() {
		return t.FeeBearer().Quantity
	}
	qty := 0
	for _, l := range t.Legs {
		qty += l.Quantity
	}
	return qty
}

// TotalCosts returns the sum of entry and exit costs across all legs.
func (t *Trade) TotalCosts() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.Legs {
		total = total.Add(l.TotalCosts())
	}
	return total
}

// EntryNet returns the signed per-spread entry value: premium received
// minus premium paid, per the credit convention.
func (t *Trade) EntryNet() decimal.Decimal {
	net := decimal.Zero
	for _, l := range t.Legs {
		net = net.Add(l.SignedEntry())
	}
	return net
}

// Clone returns a deep copy of the trade. Lifecycle operations mutate a
// clone and persist it only on success, leaving the prior state untouched
// when anything fails.
func (t *Trade) Clone() *Trade {
	cp := *t
	cp.Legs = make([]*Leg, len(t.Legs))
	for i, l := range t.Legs {
		cp.Legs[i] = l.Clone()
	}
	if t.NetPnL != nil {
		v := *t.NetPnL
		cp.NetPnL = &v
	}
	if t.Risk != nil {
		v := *t.Risk
		cp.Risk = &v
	}
	return &cp
}
