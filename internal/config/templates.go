package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# Trade blotter configuration.
#
# Rates are quoted per contract and kept as strings so amounts stay
# exact. All amounts are USD.

# Strategies exempt from the option block windows configured further
# down. Top-level keys have to sit above the first table header.
exemptions = ["5AM"]

[costs.FUTURE]
commission_per_contract = "1.10"
exchange_fees_per_contract = "0.37"
regulatory_fees_per_contract = "0.00"

[costs.OPTION]
commission_per_contract = "1.25"
exchange_fees_per_contract = "0.50"
regulatory_fees_per_contract = "0.02"

# Strategies available to the open command. spread_kind is one of
# single_leg, bull_put_spread, bear_call_spread.

[strategies.SCALP]
spread_kind = "single_leg"
default_type = "FUTURE"
default_side = "BUY"

[strategies.BULL-PUT]
spread_kind = "bull_put_spread"
default_type = "OPTION_SPREAD"
default_side = "SELL"

[strategies.BEAR-CALL]
spread_kind = "bear_call_spread"
default_type = "OPTION_SPREAD"
default_side = "SELL"

[strategies.5AM]
spread_kind = "single_leg"
default_type = "OPTION"
default_side = "BUY"

# Contract multipliers keyed by symbol root (the part before the first
# underscore). Symbols without an entry default to 1.

[multipliers]
MES = 5
ES = 50
MNQ = 2
NQ = 20
MGC = 10
GC = 100
MCL = 100
CL = 1000

# Daily windows during which opening option trades is refused. A window
# whose start is later than its end wraps midnight. Strategies listed in
# the exemptions key at the top of this file ignore the windows.

[[option_blocks]]
start = "09:30"
end = "09:45"
name = "Market open"

[[option_blocks]]
start = "15:45"
end = "16:15"
name = "Market close"

[spread]
# Estimated share of a net spread price carried by the fee-bearing leg
# when deriving per-leg prices from a single net value.
net_price_weight = "0.80"

[logging]
level = "info"
console = false
file = true
`

// createTemplateConfig writes the default config file on first run.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}
	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(configTemplate), 0644)
}
