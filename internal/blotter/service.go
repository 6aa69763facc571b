// Package blotter implements the trade lifecycle: opening positions,
// closing and expiring legs, and the bookkeeping operations that keep
// recorded costs and P&L in line with the fee schedule.
package blotter

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"futures-blotter/internal/config"
	"futures-blotter/internal/errors"
	"futures-blotter/internal/fees"
	"futures-blotter/internal/models"
	"futures-blotter/internal/pnl"
	"futures-blotter/internal/store"
)

// Service coordinates trade lifecycle operations against the store.
// Every mutation works on a clone of the stored trade and persists it
// only when the whole operation succeeds.
type Service struct {
	cfg    *config.Config
	fees   *fees.Schedule
	store  store.TradeStore
	logger zerolog.Logger
}

// NewService creates a new blotter service.
func NewService(cfg *config.Config, st store.TradeStore, logger zerolog.Logger) *Service {
	return &Service{
		cfg:    cfg,
		fees:   fees.NewSchedule(cfg),
		store:  st,
		logger: logger,
	}
}

// Config exposes the loaded configuration for read-only consumers.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// newTradeID returns a short random trade ID.
func newTradeID() string {
	return strings.Split(uuid.New().String(), "-")[0]
}

// deriveLegPrices turns a single net spread price into per-leg prices.
// Non-fee legs get an estimated share of the net, rounded to cents; the
// fee-bearing leg is then solved from the remainder so the signed sum of
// leg prices equals the entered net exactly.
func (s *Service) deriveLegPrices(net decimal.Decimal, legs []*models.Leg, feeLeg int) error {
	if len(legs) < 2 {
		return errors.ErrNotASpread
	}
	if feeLeg < 0 || feeLeg >= len(legs) {
		return errors.NewValidationError("fee_leg", feeLeg, "leg index out of range")
	}

	weight := s.cfg.NetPriceWeight()
	share := decimal.NewFromInt(1).Sub(weight).
		Div(decimal.NewFromInt(int64(len(legs) - 1)))

	signedRest := decimal.Zero
	for i, leg := range legs {
		if i == feeLeg {
			continue
		}
		leg.EntryPrice = net.Abs().Mul(share).RoundBank(2)
		signedRest = signedRest.Add(leg.SignedEntry())
	}

	feeSigned := net.Sub(signedRest)
	fee := legs[feeLeg]
	if fee.Side == models.SideSell {
		fee.EntryPrice = feeSigned
	} else {
		fee.EntryPrice = feeSigned.Neg()
	}
	if fee.EntryPrice.IsNegative() {
		return errors.NewValidationError("net_price", net.String(),
			"net value implies a negative price on the fee-bearing leg")
	}
	return nil
}

// deriveExitPrices does the same derivation for exit prices on the open
// legs of a spread. With a single leg still open (the others closed or
// expired earlier) the whole net lands on that leg.
func (s *Service) deriveExitPrices(net decimal.Decimal, trade *models.Trade) error {
	open := trade.OpenLegs()
	if len(open) == 0 {
		return errors.ErrNoOpenLegs
	}

	feeBearer := trade.FeeBearer()
	feeIdx := -1
	for i, leg := range open {
		if leg == feeBearer {
			feeIdx = i
		}
	}
	if feeIdx == -1 {
		// Fee leg already closed; solve the first open leg instead.
		feeIdx = 0
	}

	signedRest := decimal.Zero
	if len(open) > 1 {
		weight := s.cfg.NetPriceWeight()
		share := decimal.NewFromInt(1).Sub(weight).
			Div(decimal.NewFromInt(int64(len(open) - 1)))

		for i, leg := range open {
			if i == feeIdx {
				continue
			}
			price := net.Abs().Mul(share).RoundBank(2)
			leg.ExitPrice = &price
			signedRest = signedRest.Add(leg.SignedExit())
		}
	}

	feeSigned := net.Sub(signedRest)
	fee := open[feeIdx]
	price := feeSigned
	if fee.Side != models.SideSell {
		price = feeSigned.Neg()
	}
	if price.IsNegative() {
		// Roll back the exits set above so the caller's clone stays clean.
		for _, leg := range open {
			leg.ExitPrice = nil
		}
		return errors.NewValidationError("net_price", net.String(),
			"net value implies a negative price on the fee-bearing leg")
	}
	fee.ExitPrice = &price
	return nil
}

// refreshPnL recomputes the cached net P&L. The cache is only held for
// fully closed trades; open trades carry no figure.
func refreshPnL(trade *models.Trade) error {
	trade.RefreshStatus()
	if trade.Status != models.StatusClosed {
		trade.NetPnL = nil
		return nil
	}
	net, err := pnl.NetPnL(trade)
	if err != nil {
		return err
	}
	trade.NetPnL = &net
	return nil
}
