// Package fees computes commissions and exchange/regulatory fees from the
// configured per-contract rate schedule.
package fees

import (
	"github.com/shopspring/decimal"

	"futures-blotter/internal/config"
	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
)

// Schedule resolves per-contract rates by instrument type and produces
// cost records for fills.
type Schedule struct {
	cfg *config.Config
}

// NewSchedule creates a Schedule backed by the loaded configuration.
func NewSchedule(cfg *config.Config) *Schedule {
	return &Schedule{cfg: cfg}
}

// Calculate returns the costs of one fill: per-contract rate times
// quantity, each component rounded to cents with banker's rounding.
func (s *Schedule) Calculate(instrument models.InstrumentType, quantity int) (models.CommissionFees, error) {
	if quantity <= 0 {
		return models.CommissionFees{}, errors.NewValidationError("quantity", quantity, "must be positive")
	}

	rates, err := s.cfg.FeeRates(instrument)
	if err != nil {
		return models.CommissionFees{}, err
	}

	qty := decimal.NewFromInt(int64(quantity))
	return models.CommissionFees{
		Commission:     rates.Commission.Mul(qty).RoundBank(2),
		ExchangeFees:   rates.ExchangeFees.Mul(qty).RoundBank(2),
		RegulatoryFees: rates.RegulatoryFees.Mul(qty).RoundBank(2),
	}, nil
}

// ForTrade returns the costs of one fill for a trade's instrument type.
func (s *Schedule) ForTrade(tradeType models.TradeType, quantity int) (models.CommissionFees, error) {
	return s.Calculate(tradeType.Instrument(), quantity)
}
