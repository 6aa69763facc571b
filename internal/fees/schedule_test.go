package fees

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-blotter/internal/config"
	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Costs: map[string]config.CostRates{
			"FUTURE": {
				CommissionPerContract:     "1.10",
				ExchangeFeesPerContract:   "0.37",
				RegulatoryFeesPerContract: "0.00",
			},
			"OPTION": {
				CommissionPerContract:     "2.20",
				ExchangeFeesPerContract:   "0.44",
				RegulatoryFeesPerContract: "0.00",
			},
		},
	}
}

func TestCalculateOptionRates(t *testing.T) {
	s := NewSchedule(testConfig())

	costs, err := s.Calculate(models.InstrumentOption, 80)
	require.NoError(t, err)

	assert.Equal(t, "176.00", costs.Commission.StringFixed(2))
	assert.Equal(t, "35.20", costs.ExchangeFees.StringFixed(2))
	assert.Equal(t, "0.00", costs.RegulatoryFees.StringFixed(2))
	assert.Equal(t, "211.20", costs.Total().StringFixed(2))
}

func TestCalculateFutureRates(t *testing.T) {
	s := NewSchedule(testConfig())

	costs, err := s.Calculate(models.InstrumentFuture, 2)
	require.NoError(t, err)

	assert.Equal(t, "2.20", costs.Commission.StringFixed(2))
	assert.Equal(t, "0.74", costs.ExchangeFees.StringFixed(2))
	assert.Equal(t, "2.94", costs.Total().StringFixed(2))
}

func TestCalculateBankersRounding(t *testing.T) {
	cfg := &config.Config{
		Costs: map[string]config.CostRates{
			"FUTURE": {CommissionPerContract: "0.125"},
		},
	}
	s := NewSchedule(cfg)

	// Half-cent amounts round to the even cent.
	costs, err := s.Calculate(models.InstrumentFuture, 1)
	require.NoError(t, err)
	assert.Equal(t, "0.12", costs.Commission.StringFixed(2))

	costs, err = s.Calculate(models.InstrumentFuture, 3)
	require.NoError(t, err)
	assert.Equal(t, "0.38", costs.Commission.StringFixed(2))
}

func TestCalculateRejectsBadQuantity(t *testing.T) {
	s := NewSchedule(testConfig())

	for _, qty := range []int{0, -5} {
		_, err := s.Calculate(models.InstrumentFuture, qty)
		var vErr *errors.ValidationError
		require.ErrorAs(t, err, &vErr)
	}
}

func TestCalculateMissingRates(t *testing.T) {
	s := NewSchedule(&config.Config{Costs: map[string]config.CostRates{}})

	_, err := s.Calculate(models.InstrumentOption, 1)
	var cErr *errors.ConfigurationError
	require.ErrorAs(t, err, &cErr)
}

func TestForTradeSpreadsBillAtOptionRates(t *testing.T) {
	s := NewSchedule(testConfig())

	spread, err := s.ForTrade(models.TypeOptionSpread, 80)
	require.NoError(t, err)
	option, err := s.ForTrade(models.TypeOption, 80)
	require.NoError(t, err)

	assert.True(t, spread.Total().Equal(option.Total()))
	assert.True(t, spread.Total().Equal(decimal.RequireFromString("211.20")))
}
