// Package models provides domain models for the trade blotter.
package models

// Side represents the side of a leg.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether the side is a known value.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// TradeType represents the type of a trade.
type TradeType string

const (
	TypeFuture       TradeType = "FUTURE"
	TypeOption       TradeType = "OPTION"
	TypeOptionSpread TradeType = "OPTION_SPREAD"
)

// Valid reports whether the trade type is a known value.
func (t TradeType) Valid() bool {
	switch t {
	case TypeFuture, TypeOption, TypeOptionSpread:
		return true
	}
	return false
}

// Instrument returns the fee-schedule instrument type for the trade type.
// Spreads are billed at option rates.
func (t TradeType) Instrument() InstrumentType {
	if t == TypeFuture {
		return InstrumentFuture
	}
	return InstrumentOption
}

// IsOption reports whether the trade type involves options.
func (t TradeType) IsOption() bool {
	return t == TypeOption || t == TypeOptionSpread
}

// InstrumentType keys the fee schedule.
type InstrumentType string

const (
	InstrumentFuture InstrumentType = "FUTURE"
	InstrumentOption InstrumentType = "OPTION"
)

// TradeStatus represents the lifecycle status of a trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
)

// SpreadKind classifies a configured strategy.
type SpreadKind string

const (
	SpreadNone     SpreadKind = "single_leg"
	SpreadBullPut  SpreadKind = "bull_put_spread"
	SpreadBearCall SpreadKind = "bear_call_spread"
)

// IsSpread reports whether the strategy opens multi-leg spreads.
func (k SpreadKind) IsSpread() bool {
	return k == SpreadBullPut || k == SpreadBearCall
}
