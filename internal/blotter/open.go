package blotter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"futures-blotter/internal/errors"
	"futures-blotter/internal/logging"
	"futures-blotter/internal/models"
)

// LegSpec describes one leg of a new trade.
type LegSpec struct {
	Symbol string
	Side   models.Side
	Price  decimal.Decimal
}

// OpenRequest describes a new trade. Either every leg carries an
// explicit price, or NetPrice is set and per-leg prices are derived from
// the net value. Quantity is per leg: 80 on a two-leg spread means 80
// spreads, 160 contracts filled.
type OpenRequest struct {
	Strategy  string
	Type      models.TradeType
	Quantity  int
	Legs      []LegSpec
	NetPrice  *decimal.Decimal
	FeeLeg    int
	Risk      *models.Risk
	Timestamp time.Time // zero means now
}

// OpenTrade opens a new trade. Entry costs are computed from the fee
// schedule and attached to the designated fee-bearing leg; on spreads the
// sibling legs carry explicit zero-cost records, matching how the broker
// bills one commission per spread order.
func (s *Service) OpenTrade(ctx context.Context, req OpenRequest) (*models.Trade, error) {
	if err := s.validateOpen(&req); err != nil {
		return nil, err
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	if req.Type.IsOption() && !s.cfg.IsExempt(req.Strategy) {
		if blocked, name := s.cfg.BlockedForOptions(ts); blocked {
			return nil, errors.Wrapf(errors.ErrOptionsBlocked, "window %q", name)
		}
	}

	trade := &models.Trade{
		ID:        newTradeID(),
		Timestamp: ts,
		Type:      req.Type,
		Strategy:  req.Strategy,
		FeeLeg:    req.FeeLeg,
		Status:    models.StatusOpen,
		Risk:      req.Risk,
	}

	for _, spec := range req.Legs {
		trade.Legs = append(trade.Legs, &models.Leg{
			Symbol:     spec.Symbol,
			Side:       spec.Side,
			Quantity:   req.Quantity,
			EntryPrice: spec.Price,
			Multiplier: s.cfg.MultiplierFor(spec.Symbol),
			EntryCosts: models.ZeroFees(),
		})
	}

	if req.NetPrice != nil {
		if err := s.deriveLegPrices(*req.NetPrice, trade.Legs, req.FeeLeg); err != nil {
			return nil, err
		}
	}

	entryCosts, err := s.fees.ForTrade(req.Type, req.Quantity)
	if err != nil {
		return nil, err
	}
	trade.FeeBearer().EntryCosts = entryCosts

	if err := s.store.SaveTrade(ctx, trade); err != nil {
		return nil, err
	}

	logging.LogTradeOpened(s.logger, trade.ID, trade.Strategy,
		trade.DisplayQuantity(), entryCosts.Total().StringFixed(2))
	return trade, nil
}

func (s *Service) validateOpen(req *OpenRequest) error {
	if _, err := s.cfg.Strategy(req.Strategy); err != nil {
		return err
	}
	if !req.Type.Valid() {
		return errors.NewValidationError("type", string(req.Type), "unknown trade type")
	}
	if req.Quantity <= 0 {
		return errors.NewValidationError("quantity", req.Quantity, "must be positive")
	}
	if len(req.Legs) == 0 {
		return errors.NewValidationError("legs", 0, "at least one leg required")
	}
	if req.Type == models.TypeOptionSpread && len(req.Legs) < 2 {
		return errors.ErrNotASpread
	}
	if req.Type != models.TypeOptionSpread && len(req.Legs) > 1 {
		return errors.NewValidationError("legs", len(req.Legs), "multiple legs require a spread type")
	}
	if req.FeeLeg < 0 || req.FeeLeg >= len(req.Legs) {
		return errors.NewValidationError("fee_leg", req.FeeLeg, "leg index out of range")
	}

	seen := make(map[string]bool, len(req.Legs))
	for _, spec := range req.Legs {
		if spec.Symbol == "" {
			return errors.NewValidationError("symbol", "", "must not be empty")
		}
		if seen[spec.Symbol] {
			return errors.NewValidationError("symbol", spec.Symbol, "duplicate leg symbol")
		}
		seen[spec.Symbol] = true
		if !spec.Side.Valid() {
			return errors.NewValidationError("side", string(spec.Side), "must be BUY or SELL")
		}
		if req.NetPrice == nil && spec.Price.IsNegative() {
			return errors.NewValidationError("price", spec.Price.String(), "must be non-negative")
		}
	}
	return nil
}
