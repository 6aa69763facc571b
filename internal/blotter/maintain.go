package blotter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
	"futures-blotter/internal/pnl"
)

// driftTolerance is the largest cost or P&L discrepancy the audit
// ignores. Anything above a cent gets flagged.
var driftTolerance = decimal.NewFromFloat(0.01)

// LegFix holds corrections to one leg. Nil fields are left alone.
type LegFix struct {
	EntryPrice *decimal.Decimal
	ExitPrice  *decimal.Decimal
	Quantity   *int
}

// FixRequest holds corrections to a recorded trade. Nil fields are left
// alone. Quantity changes force a fee recompute; every fix refreshes the
// cached P&L.
type FixRequest struct {
	Strategy  *string
	Timestamp *time.Time
	FeeLeg    *int
	Legs      map[string]LegFix // keyed by leg symbol
}

// FixTrade applies corrections to a stored trade.
func (s *Service) FixTrade(ctx context.Context, id string, fix FixRequest) (*models.Trade, error) {
	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}

	trade := stored.Clone()
	qtyChanged := false

	if fix.Strategy != nil {
		if _, err := s.cfg.Strategy(*fix.Strategy); err != nil {
			return nil, err
		}
		trade.Strategy = *fix.Strategy
	}
	if fix.Timestamp != nil {
		trade.Timestamp = *fix.Timestamp
	}
	if fix.FeeLeg != nil {
		if *fix.FeeLeg < 0 || *fix.FeeLeg >= len(trade.Legs) {
			return nil, errors.NewValidationError("fee_leg", *fix.FeeLeg, "leg index out of range")
		}
		if trade.FeeLeg != *fix.FeeLeg {
			trade.FeeLeg = *fix.FeeLeg
			qtyChanged = true // move the charge to the new bearer
		}
	}

	for symbol, legFix := range fix.Legs {
		leg := trade.FindLeg(symbol)
		if leg == nil {
			return nil, errors.NewNotFoundError("leg", symbol)
		}
		if legFix.EntryPrice != nil {
			if legFix.EntryPrice.IsNegative() {
				return nil, errors.NewValidationError("entry_price", legFix.EntryPrice.String(), "must be non-negative")
			}
			leg.EntryPrice = *legFix.EntryPrice
		}
		if legFix.ExitPrice != nil {
			if legFix.ExitPrice.IsNegative() {
				return nil, errors.NewValidationError("exit_price", legFix.ExitPrice.String(), "must be non-negative")
			}
			v := *legFix.ExitPrice
			leg.ExitPrice = &v
		}
		if legFix.Quantity != nil {
			if *legFix.Quantity <= 0 {
				return nil, errors.NewValidationError("quantity", *legFix.Quantity, "must be positive")
			}
			if leg.Quantity != *legFix.Quantity {
				leg.Quantity = *legFix.Quantity
				qtyChanged = true
			}
		}
	}

	if qtyChanged {
		if err := s.recalcCosts(trade); err != nil {
			return nil, err
		}
	}

	// A fix can close a leg by setting its exit price. Those legs need a
	// cost record like any other close: a zero record for expirations, the
	// exit charge (or a zero sibling record) otherwise.
	for _, leg := range trade.Legs {
		if !leg.IsClosed() || leg.ExitCosts != nil {
			continue
		}
		if leg.IsExpired() {
			zero := models.ZeroFees()
			leg.ExitCosts = &zero
			continue
		}
		if err := s.applyExitCosts(trade, leg); err != nil {
			return nil, err
		}
	}

	if err := refreshPnL(trade); err != nil {
		return nil, err
	}
	if err := s.store.SaveTrade(ctx, trade); err != nil {
		return nil, err
	}

	s.logger.Info().Str("event", "fix").Str("trade_id", trade.ID).Msg("Trade corrected")
	return trade, nil
}

// RecalcTrade recomputes the cached P&L of a closed trade from its
// recorded prices and cost records. Cost records are historical facts
// from the schedule in force when the fills happened, so recalc never
// touches them; use fix or backfill to change costs. Running it twice
// changes nothing.
func (s *Service) RecalcTrade(ctx context.Context, id string) (*models.Trade, bool, error) {
	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, false, err
	}

	trade := stored.Clone()
	if err := refreshPnL(trade); err != nil {
		return nil, false, err
	}

	changed := tradeDiffers(stored, trade)
	if changed {
		if err := s.store.SaveTrade(ctx, trade); err != nil {
			return nil, false, err
		}
		s.logger.Info().Str("event", "recalc").Str("trade_id", trade.ID).Msg("Cached P&L recalculated")
	}
	return trade, changed, nil
}

// RecalcAll recalculates every stored trade and returns how many changed.
func (s *Service) RecalcAll(ctx context.Context) (int, error) {
	trades, err := s.store.LoadAllTrades(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, trade := range trades {
		_, didChange, err := s.RecalcTrade(ctx, trade.ID)
		if err != nil {
			return changed, errors.Wrapf(err, "recalc trade %s", trade.ID)
		}
		if didChange {
			changed++
		}
	}
	return changed, nil
}

// BackfillTrade fills in missing cost records on a trade imported or
// recorded before fee tracking: entry costs when the trade carries none,
// and the exit charge when it closed at a real price with none recorded.
// Existing non-zero records are left untouched.
func (s *Service) BackfillTrade(ctx context.Context, id string) (*models.Trade, bool, error) {
	stored, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, false, err
	}

	trade := stored.Clone()

	entryTotal := decimal.Zero
	for _, leg := range trade.Legs {
		entryTotal = entryTotal.Add(leg.EntryCosts.Total())
	}
	if entryTotal.IsZero() {
		fee := trade.FeeBearer()
		costs, err := s.fees.ForTrade(trade.Type, fee.Quantity)
		if err != nil {
			return nil, false, err
		}
		fee.EntryCosts = costs
	}

	if target := exitChargeTarget(trade); target != nil {
		exitTotal := decimal.Zero
		for _, leg := range trade.Legs {
			if leg.ExitCosts != nil {
				exitTotal = exitTotal.Add(leg.ExitCosts.Total())
			}
		}
		if exitTotal.IsZero() {
			costs, err := s.fees.ForTrade(trade.Type, target.Quantity)
			if err != nil {
				return nil, false, err
			}
			target.ExitCosts = &costs
		}
	}

	if err := refreshPnL(trade); err != nil {
		return nil, false, err
	}

	changed := tradeDiffers(stored, trade)
	if changed {
		if err := s.store.SaveTrade(ctx, trade); err != nil {
			return nil, false, err
		}
		s.logger.Info().Str("event", "backfill").Str("trade_id", trade.ID).Msg("Costs backfilled")
	}
	return trade, changed, nil
}

// BackfillAll backfills every stored trade and returns how many changed.
func (s *Service) BackfillAll(ctx context.Context) (int, error) {
	trades, err := s.store.LoadAllTrades(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, trade := range trades {
		_, didChange, err := s.BackfillTrade(ctx, trade.ID)
		if err != nil {
			return changed, errors.Wrapf(err, "backfill trade %s", trade.ID)
		}
		if didChange {
			changed++
		}
	}
	return changed, nil
}

// AuditReport compares a trade's recorded costs and cached P&L against
// what the fee schedule and the P&L engine produce today.
type AuditReport struct {
	TradeID       string
	Strategy      string
	Status        models.TradeStatus
	ExpectedCosts decimal.Decimal
	RecordedCosts decimal.Decimal
	CostDrift     decimal.Decimal
	ExpectedNet   *decimal.Decimal
	RecordedNet   *decimal.Decimal
	NetDrift      decimal.Decimal
	Clean         bool
}

// AuditTrade audits one trade. Drift above a cent in either costs or
// cached P&L marks the report dirty.
func (s *Service) AuditTrade(ctx context.Context, id string) (*AuditReport, error) {
	trade, err := s.store.GetTrade(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.auditTrade(trade)
}

func (s *Service) auditTrade(trade *models.Trade) (*AuditReport, error) {
	report := &AuditReport{
		TradeID:       trade.ID,
		Strategy:      trade.Strategy,
		Status:        trade.Status,
		RecordedCosts: trade.TotalCosts(),
	}

	fee := trade.FeeBearer()
	entry, err := s.fees.ForTrade(trade.Type, fee.Quantity)
	if err != nil {
		return nil, err
	}
	report.ExpectedCosts = entry.Total()

	if target := exitChargeTarget(trade); target != nil {
		exit, err := s.fees.ForTrade(trade.Type, target.Quantity)
		if err != nil {
			return nil, err
		}
		report.ExpectedCosts = report.ExpectedCosts.Add(exit.Total())
	}
	report.CostDrift = report.RecordedCosts.Sub(report.ExpectedCosts).Abs()

	report.Clean = report.CostDrift.LessThanOrEqual(driftTolerance)

	if trade.Status == models.StatusClosed {
		res, err := pnl.TradePnL(trade)
		if err != nil {
			return nil, err
		}
		report.ExpectedNet = &res.Net
		report.RecordedNet = trade.NetPnL
		if trade.NetPnL == nil {
			report.Clean = false
		} else {
			report.NetDrift = trade.NetPnL.Sub(res.Net).Abs()
			if report.NetDrift.GreaterThan(driftTolerance) {
				report.Clean = false
			}
		}
	}

	return report, nil
}

// AuditAll audits every stored trade, returning the reports and how many
// are dirty.
func (s *Service) AuditAll(ctx context.Context) ([]*AuditReport, int, error) {
	trades, err := s.store.LoadAllTrades(ctx)
	if err != nil {
		return nil, 0, err
	}

	var reports []*AuditReport
	dirty := 0
	for _, trade := range trades {
		report, err := s.auditTrade(trade)
		if err != nil {
			return nil, dirty, errors.Wrapf(err, "audit trade %s", trade.ID)
		}
		if !report.Clean {
			dirty++
		}
		reports = append(reports, report)
	}
	return reports, dirty, nil
}

// DeleteTrade removes a trade from the store.
func (s *Service) DeleteTrade(ctx context.Context, id string) error {
	if err := s.store.DeleteTrade(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("event", "delete").Str("trade_id", id).Msg("Trade deleted")
	return nil
}

// recalcCosts rewrites every cost record from the fee schedule: one
// entry charge on the fee-bearing leg, one exit charge on the leg that
// holds it (zero records everywhere else). Full expirations stay free.
func (s *Service) recalcCosts(trade *models.Trade) error {
	fee := trade.FeeBearer()
	entry, err := s.fees.ForTrade(trade.Type, fee.Quantity)
	if err != nil {
		return err
	}
	for _, leg := range trade.Legs {
		leg.EntryCosts = models.ZeroFees()
	}
	fee.EntryCosts = entry

	target := exitChargeTarget(trade)
	for _, leg := range trade.Legs {
		if !leg.IsClosed() {
			leg.ExitCosts = nil
			continue
		}
		zero := models.ZeroFees()
		leg.ExitCosts = &zero
	}
	if target != nil {
		exit, err := s.fees.ForTrade(trade.Type, target.Quantity)
		if err != nil {
			return err
		}
		target.ExitCosts = &exit
	}
	return nil
}

// exitChargeTarget returns the leg that should carry the trade's one
// exit charge, or nil when no exit fees apply (nothing closed yet, or
// everything expired worthless). Preference order: the leg already
// holding a non-zero exit record, the fee-bearing leg if it closed at a
// real price, then the first leg closed at a real price.
func exitChargeTarget(trade *models.Trade) *models.Leg {
	for _, leg := range trade.Legs {
		if leg.ExitCosts != nil && !leg.ExitCosts.IsZero() && leg.IsClosed() {
			return leg
		}
	}

	fee := trade.FeeBearer()
	if fee.IsClosed() && !fee.IsExpired() {
		return fee
	}
	for _, leg := range trade.Legs {
		if leg.IsClosed() && !leg.IsExpired() {
			return leg
		}
	}
	return nil
}

// tradeDiffers reports whether two versions of a trade disagree on any
// cost record, exit price, quantity, or cached P&L.
func tradeDiffers(a, b *models.Trade) bool {
	if len(a.Legs) != len(b.Legs) {
		return true
	}
	if (a.NetPnL == nil) != (b.NetPnL == nil) {
		return true
	}
	if a.NetPnL != nil && !a.NetPnL.Equal(*b.NetPnL) {
		return true
	}
	for i := range a.Legs {
		la, lb := a.Legs[i], b.Legs[i]
		if la.Quantity != lb.Quantity {
			return true
		}
		if !la.EntryCosts.Total().Equal(lb.EntryCosts.Total()) {
			return true
		}
		if (la.ExitCosts == nil) != (lb.ExitCosts == nil) {
			return true
		}
		if la.ExitCosts != nil && !la.ExitCosts.Total().Equal(lb.ExitCosts.Total()) {
			return true
		}
		if (la.ExitPrice == nil) != (lb.ExitPrice == nil) {
			return true
		}
		if la.ExitPrice != nil && !la.ExitPrice.Equal(*lb.ExitPrice) {
			return true
		}
	}
	return false
}
