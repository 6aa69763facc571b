// Package config provides configuration management for the trade blotter.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"futures-blotter/internal/errors"
	"futures-blotter/internal/models"
)

// Config holds all application configuration.
type Config struct {
	Costs        map[string]CostRates `mapstructure:"costs"`
	Strategies   map[string]Strategy  `mapstructure:"strategies"`
	Multipliers  map[string]int       `mapstructure:"multipliers"`
	OptionBlocks []OptionBlock        `mapstructure:"option_blocks"`
	Exemptions   []string             `mapstructure:"exemptions"`
	Spread       SpreadConfig         `mapstructure:"spread"`
	Logging      LoggingConfig        `mapstructure:"logging"`
}

// CostRates holds per-contract fee rates for one instrument type. Rates
// are kept as strings in the file so amounts stay exact.
type CostRates struct {
	CommissionPerContract     string `mapstructure:"commission_per_contract"`
	ExchangeFeesPerContract   string `mapstructure:"exchange_fees_per_contract"`
	RegulatoryFeesPerContract string `mapstructure:"regulatory_fees_per_contract"`
}

// FeeRates is the parsed per-contract rate set handed to the fee schedule.
type FeeRates struct {
	Commission     decimal.Decimal
	ExchangeFees   decimal.Decimal
	RegulatoryFees decimal.Decimal
}

// Strategy holds the metadata of a configured strategy.
type Strategy struct {
	SpreadKind  string `mapstructure:"spread_kind"`  // single_leg, bull_put_spread, bear_call_spread
	DefaultType string `mapstructure:"default_type"` // FUTURE, OPTION, OPTION_SPREAD
	DefaultSide string `mapstructure:"default_side"` // BUY, SELL
}

// Kind returns the strategy's spread kind, defaulting to single_leg.
func (s Strategy) Kind() models.SpreadKind {
	switch models.SpreadKind(s.SpreadKind) {
	case models.SpreadBullPut:
		return models.SpreadBullPut
	case models.SpreadBearCall:
		return models.SpreadBearCall
	}
	return models.SpreadNone
}

// OptionBlock is a daily time window during which opening option trades
// is blocked. A block whose start is later than its end wraps midnight.
type OptionBlock struct {
	Start string `mapstructure:"start"` // "15:04"
	End   string `mapstructure:"end"`
	Name  string `mapstructure:"name"`
}

// SpreadConfig holds spread-specific settings.
type SpreadConfig struct {
	// NetPriceWeight is the estimated share of a net spread price carried
	// by the fee-bearing (short) leg when deriving implied per-leg prices
	// from a single net value. The derivation always reconciles the fee
	// leg so the signed sum matches the entered net exactly.
	NetPriceWeight string `mapstructure:"net_price_weight"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/blotter"
	}
	return filepath.Join(home, ".config", "blotter")
}

// Load loads configuration from the specified directory. If configDir is
// empty, the default config directory is used. A template config file is
// written on first run.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if err := createTemplateConfig(configDir); err != nil {
				return nil, fmt.Errorf("writing template config: %w", err)
			}
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("reading config.toml: %w", err)
			}
		} else {
			return nil, fmt.Errorf("reading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config.toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for typ, rates := range c.Costs {
		for key, raw := range map[string]string{
			"commission_per_contract":      rates.CommissionPerContract,
			"exchange_fees_per_contract":   rates.ExchangeFeesPerContract,
			"regulatory_fees_per_contract": rates.RegulatoryFeesPerContract,
		} {
			if raw == "" {
				continue
			}
			d, err := decimal.NewFromString(raw)
			if err != nil {
				return errors.NewConfigurationError("costs."+typ, key, "not a decimal amount: "+raw)
			}
			if d.IsNegative() {
				return errors.NewConfigurationError("costs."+typ, key, "rate must be non-negative")
			}
		}
	}

	for _, b := range c.OptionBlocks {
		for _, raw := range []string{b.Start, b.End} {
			if _, err := time.Parse("15:04", raw); err != nil {
				return errors.NewConfigurationError("option_blocks", b.Name, "bad time "+raw+", want HH:MM")
			}
		}
	}

	if c.Spread.NetPriceWeight != "" {
		w, err := decimal.NewFromString(c.Spread.NetPriceWeight)
		if err != nil || w.IsNegative() || w.GreaterThan(decimal.NewFromInt(1)) {
			return errors.NewConfigurationError("spread", "net_price_weight", "must be a decimal in [0, 1]")
		}
	}

	return nil
}

// FeeRates returns the parsed per-contract rates for an instrument type,
// or a ConfigurationError if none are configured.
func (c *Config) FeeRates(instrument models.InstrumentType) (FeeRates, error) {
	rates, ok := c.Costs[string(instrument)]
	if !ok {
		// Viper lowercases table keys.
		rates, ok = c.Costs[strings.ToLower(string(instrument))]
	}
	if !ok {
		return FeeRates{}, errors.NewConfigurationError("costs", string(instrument), "no fee rates configured")
	}

	parsed := FeeRates{}
	var err error
	if parsed.Commission, err = parseRate(rates.CommissionPerContract); err != nil {
		return FeeRates{}, errors.NewConfigurationError("costs."+string(instrument), "commission_per_contract", err.Error())
	}
	if parsed.ExchangeFees, err = parseRate(rates.ExchangeFeesPerContract); err != nil {
		return FeeRates{}, errors.NewConfigurationError("costs."+string(instrument), "exchange_fees_per_contract", err.Error())
	}
	if parsed.RegulatoryFees, err = parseRate(rates.RegulatoryFeesPerContract); err != nil {
		return FeeRates{}, errors.NewConfigurationError("costs."+string(instrument), "regulatory_fees_per_contract", err.Error())
	}
	return parsed, nil
}

func parseRate(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

// Strategy returns the metadata of a configured strategy, or a
// ConfigurationError if the name is unknown.
func (c *Config) Strategy(name string) (Strategy, error) {
	if s, ok := c.Strategies[name]; ok {
		return s, nil
	}
	if s, ok := c.Strategies[strings.ToLower(name)]; ok {
		return s, nil
	}
	return Strategy{}, errors.NewConfigurationError("strategies", name, "unknown strategy")
}

// StrategyNames returns the configured strategy names, uppercased.
func (c *Config) StrategyNames() []string {
	names := make([]string, 0, len(c.Strategies))
	for name := range c.Strategies {
		names = append(names, strings.ToUpper(name))
	}
	return names
}

// MultiplierFor returns the contract multiplier for a symbol, keyed by
// the symbol's root (the part before the first underscore). Defaults to 1.
func (c *Config) MultiplierFor(symbol string) int {
	root := symbol
	if i := strings.Index(symbol, "_"); i > 0 {
		root = symbol[:i]
	}
	if m, ok := c.Multipliers[root]; ok {
		return m
	}
	if m, ok := c.Multipliers[strings.ToLower(root)]; ok {
		return m
	}
	return 1
}

// NetPriceWeight returns the configured fee-leg share for net-price
// derivation, defaulting to 0.80.
func (c *Config) NetPriceWeight() decimal.Decimal {
	if c.Spread.NetPriceWeight == "" {
		return decimal.NewFromFloat(0.80)
	}
	w, err := decimal.NewFromString(c.Spread.NetPriceWeight)
	if err != nil {
		return decimal.NewFromFloat(0.80)
	}
	return w
}

// IsExempt reports whether a strategy is exempt from option blocks.
func (c *Config) IsExempt(strategy string) bool {
	for _, name := range c.Exemptions {
		if strings.EqualFold(name, strategy) {
			return true
		}
	}
	return false
}

// BlockedForOptions reports whether now falls inside a configured option
// block, returning the block name when blocked.
func (c *Config) BlockedForOptions(now time.Time) (bool, string) {
	minute := now.Hour()*60 + now.Minute()
	for _, b := range c.OptionBlocks {
		start, err := time.Parse("15:04", b.Start)
		if err != nil {
			continue
		}
		end, err := time.Parse("15:04", b.End)
		if err != nil {
			continue
		}
		s := start.Hour()*60 + start.Minute()
		e := end.Hour()*60 + end.Minute()

		name := b.Name
		if name == "" {
			name = "Option Block"
		}

		if s > e { // wraps midnight, e.g. 18:00-02:00
			if minute >= s || minute <= e {
				return true, name
			}
		} else if minute >= s && minute <= e {
			return true, name
		}
	}
	return false, ""
}
