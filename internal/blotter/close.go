package blotter

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"futures-blotter/internal/errors"
	"futures-blotter/internal/logging"
	"futures-blotter/internal/models"
	"futures-blotter/internal/pnl"
)

// CloseTrade closes every open leg of a trade. For a single-leg trade
// the price is the exit fill; for a spread it is the net exit value and
// per-leg exit prices are derived from it. Exit costs are one charge on
// the fee-bearing leg.
func (s *Service) CloseTrade(ctx context.Context, id string, price decimal.Decimal) (*models.Trade, error) {
	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.Status == models.StatusClosed {
		return nil, errors.Wrapf(errors.ErrTradeClosed, "trade %s", id)
	}

	trade := stored.Clone()
	open := trade.OpenLegs()
	if len(open) == 0 {
		return nil, errors.ErrNoOpenLegs
	}

	// The one exit charge lands on the fee-bearing leg when it is part of
	// this close, otherwise on the first leg closed here.
	target := open[0]
	for _, leg := range open {
		if leg == trade.FeeBearer() {
			target = leg
		}
	}

	if trade.IsSpread() {
		if err := s.deriveExitPrices(price, trade); err != nil {
			return nil, err
		}
	} else {
		if price.IsNegative() {
			return nil, errors.NewValidationError("price", price.String(), "must be non-negative")
		}
		p := price
		open[0].ExitPrice = &p
	}

	if err := s.applyExitCosts(trade, target); err != nil {
		return nil, err
	}
	if err := s.finishClose(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// CloseLeg closes a single leg at an explicit price with an optional
// free-text reason. On spreads the one exit charge goes to the first leg
// closed at a real price; later leg closes carry zero-cost records.
func (s *Service) CloseLeg(ctx context.Context, id, symbol string, price decimal.Decimal, reason string) (*models.Trade, error) {
	if price.IsNegative() {
		return nil, errors.NewValidationError("price", price.String(), "must be non-negative")
	}

	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}

	trade := stored.Clone()
	leg := trade.FindLeg(symbol)
	if leg == nil {
		return nil, errors.NewNotFoundError("leg", symbol)
	}
	if leg.IsClosed() {
		return nil, errors.Wrapf(errors.ErrLegClosed, "leg %s of trade %s", symbol, id)
	}

	p := price
	leg.ExitPrice = &p
	leg.CloseReason = reason
	if err := s.applyExitCosts(trade, leg); err != nil {
		return nil, err
	}
	if err := s.finishClose(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ExpireLeg records a leg expiring worthless: exit price 0.00 and a
// zero-cost record. Expiration is the one exit that never incurs fees.
func (s *Service) ExpireLeg(ctx context.Context, id, symbol string) (*models.Trade, error) {
	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}

	trade := stored.Clone()
	leg := trade.FindLeg(symbol)
	if leg == nil {
		return nil, errors.NewNotFoundError("leg", symbol)
	}
	if leg.IsClosed() {
		return nil, errors.Wrapf(errors.ErrLegClosed, "leg %s of trade %s", symbol, id)
	}

	expireLeg(leg)
	if err := s.finishClose(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ExpireSpread records every open leg of a spread expiring worthless.
func (s *Service) ExpireSpread(ctx context.Context, id string) (*models.Trade, error) {
	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if !stored.IsSpread() {
		return nil, errors.Wrapf(errors.ErrNotASpread, "trade %s", id)
	}

	trade := stored.Clone()
	open := trade.OpenLegs()
	if len(open) == 0 {
		return nil, errors.ErrNoOpenLegs
	}
	for _, leg := range open {
		expireLeg(leg)
	}

	if err := s.finishClose(ctx, trade); err != nil {
		return nil, err
	}
	return trade, nil
}

// ClosePartial closes part of a single-leg position. The closed portion
// is carved off into a child trade carrying its share of the entry costs
// plus the full exit charge; the parent keeps the remainder open.
func (s *Service) ClosePartial(ctx context.Context, id string, qty int, price decimal.Decimal) (*models.Trade, error) {
	if price.IsNegative() {
		return nil, errors.NewValidationError("price", price.String(), "must be non-negative")
	}

	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored.IsSpread() {
		return nil, errors.NewValidationError("trade", id, "partial close applies to single-leg trades")
	}
	if stored.Status == models.StatusClosed {
		return nil, errors.Wrapf(errors.ErrTradeClosed, "trade %s", id)
	}

	parent := stored.Clone()
	leg := parent.Legs[0]
	if qty <= 0 || qty >= leg.Quantity {
		return nil, errors.NewValidationError("quantity", qty,
			fmt.Sprintf("must be between 1 and %d", leg.Quantity-1))
	}

	if parent.OriginalQty == 0 {
		parent.OriginalQty = leg.Quantity
	}

	// Entry costs split proportionally by quantity; the parent keeps the
	// remainder so the two records still sum to the original charge.
	childEntry, parentEntry := splitFees(leg.EntryCosts, qty, leg.Quantity)

	childLeg := leg.Clone()
	childLeg.Quantity = qty
	childLeg.EntryCosts = childEntry
	p := price
	childLeg.ExitPrice = &p

	childID, err := nextChildID(ctx, s, parent.ID)
	if err != nil {
		return nil, err
	}
	child := &models.Trade{
		ID:          childID,
		Timestamp:   parent.Timestamp,
		Type:        parent.Type,
		Strategy:    parent.Strategy,
		Legs:        []*models.Leg{childLeg},
		FeeLeg:      0,
		Risk:        parent.Risk,
		OriginalQty: parent.OriginalQty,
	}

	exitCosts, err := s.fees.ForTrade(child.Type, qty)
	if err != nil {
		return nil, err
	}
	childLeg.ExitCosts = &exitCosts

	if err := refreshPnL(child); err != nil {
		return nil, err
	}

	leg.Quantity -= qty
	leg.EntryCosts = parentEntry

	if err := s.store.SaveTrade(ctx, child); err != nil {
		return nil, err
	}
	if err := s.store.SaveTrade(ctx, parent); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("event", "partial_close").
		Str("trade_id", parent.ID).
		Str("child_id", child.ID).
		Int("closed", qty).
		Int("remaining", leg.Quantity).
		Msg("Partial close")
	return child, nil
}

// applyExitCosts attaches the spread's single exit charge to target, or a
// zero record when another leg already carries one.
func (s *Service) applyExitCosts(trade *models.Trade, target *models.Leg) error {
	if target.ExitCosts != nil {
		return nil
	}

	zero := models.ZeroFees()
	if trade.IsSpread() {
		for _, leg := range trade.Legs {
			if leg != target && leg.ExitCosts != nil && !leg.ExitCosts.IsZero() {
				target.ExitCosts = &zero
				return nil
			}
		}
	}

	costs, err := s.fees.ForTrade(trade.Type, target.Quantity)
	if err != nil {
		return err
	}
	target.ExitCosts = &costs

	// Sibling legs closed in the same operation get zero-cost records.
	for _, leg := range trade.Legs {
		if leg != target && leg.IsClosed() && leg.ExitCosts == nil {
			z := zero
			leg.ExitCosts = &z
		}
	}
	return nil
}

// finishClose refreshes status and cached P&L, persists, and logs the
// close when the trade is fully closed.
func (s *Service) finishClose(ctx context.Context, trade *models.Trade) error {
	// Legs closed without a cost record (expirations) get explicit zeros.
	for _, leg := range trade.Legs {
		if leg.IsClosed() && leg.ExitCosts == nil {
			zero := models.ZeroFees()
			leg.ExitCosts = &zero
		}
	}

	if err := refreshPnL(trade); err != nil {
		return err
	}
	if err := s.store.SaveTrade(ctx, trade); err != nil {
		return err
	}

	if trade.Status == models.StatusClosed {
		res, err := pnl.TradePnL(trade)
		if err != nil {
			return err
		}
		logging.LogTradeClosed(s.logger, trade.ID,
			res.Gross.StringFixed(2), res.TotalCosts.StringFixed(2), res.Net.StringFixed(2))
	}
	return nil
}

func expireLeg(leg *models.Leg) {
	zeroPrice := decimal.Zero
	zeroCosts := models.ZeroFees()
	leg.ExitPrice = &zeroPrice
	leg.ExitCosts = &zeroCosts
}

// splitFees divides a cost record by quantity, giving the part qty of
// total and the remainder. Components round to cents; the remainder
// absorbs the rounding so the two parts sum to the original exactly.
func splitFees(f models.CommissionFees, qty, total int) (part, rest models.CommissionFees) {
	ratio := decimal.NewFromInt(int64(qty)).Div(decimal.NewFromInt(int64(total)))
	part = models.CommissionFees{
		Commission:     f.Commission.Mul(ratio).RoundBank(2),
		ExchangeFees:   f.ExchangeFees.Mul(ratio).RoundBank(2),
		RegulatoryFees: f.RegulatoryFees.Mul(ratio).RoundBank(2),
	}
	rest = models.CommissionFees{
		Commission:     f.Commission.Sub(part.Commission),
		ExchangeFees:   f.ExchangeFees.Sub(part.ExchangeFees),
		RegulatoryFees: f.RegulatoryFees.Sub(part.RegulatoryFees),
	}
	return part, rest
}

// nextChildID returns the first free <id>-P<n> child ID. Only a
// not-found result means the ID is free; store failures propagate so a
// flaky read cannot hand out an ID that is already taken.
func nextChildID(ctx context.Context, s *Service, parentID string) (string, error) {
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s-P%d", parentID, n)
		_, err := s.store.GetTrade(ctx, id)
		if err == nil {
			continue
		}
		var nf *errors.NotFoundError
		if errors.As(err, &nf) {
			return id, nil
		}
		return "", errors.Wrapf(err, "check child id %s", id)
	}
}
