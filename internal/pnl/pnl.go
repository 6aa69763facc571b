// Package pnl computes realized profit and loss for legs and trades.
package pnl

import (
	"github.com/shopspring/decimal"

	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
)

// Result holds the P&L breakdown of a trade.
type Result struct {
	Gross      decimal.Decimal // realized gross across closed legs
	TotalCosts decimal.Decimal // entry + exit costs across all legs
	Net        decimal.Decimal // Gross - TotalCosts
}

// LegPnL returns the realized gross P&L of a closed leg: the price move
// in the direction of the position, times quantity, times the contract
// multiplier. Asking for the P&L of an open leg is caller misuse and
// returns an IncompleteLegError rather than a silent zero.
func LegPnL(leg *models.Leg) (decimal.Decimal, error) {
	if !leg.IsClosed() {
		return decimal.Zero, errors.NewIncompleteLegError(leg.Symbol)
	}

	move := leg.ExitPrice.Sub(leg.EntryPrice)
	if leg.Side == models.SideSell {
		move = leg.EntryPrice.Sub(*leg.ExitPrice)
	}

	scale := decimal.NewFromInt(int64(leg.Quantity * leg.Multiplier))
	return move.Mul(scale), nil
}

// TradePnL returns the trade's realized P&L. Gross sums only closed
// legs; costs sum every cost record on the trade, so a partially closed
// trade reports its entry costs in full.
func TradePnL(trade *models.Trade) (Result, error) {
	res := Result{Gross: decimal.Zero, TotalCosts: trade.TotalCosts()}

	for _, leg := range trade.Legs {
		if !leg.IsClosed() {
			continue
		}
		gross, err := LegPnL(leg)
		if err != nil {
			return Result{}, err
		}
		res.Gross = res.Gross.Add(gross)
	}

	res.Net = res.Gross.Sub(res.TotalCosts)
	return res, nil
}

// NetPnL is a convenience wrapper returning just the net figure.
func NetPnL(trade *models.Trade) (decimal.Decimal, error) {
	res, err := TradePnL(trade)
	if err != nil {
		return decimal.Zero, err
	}
	return res.Net, nil
}
